package main

import (
	"bcfy-backend/cmd/bcfy-cli/commands"
	"bcfy-backend/lib/telemetry"
	"context"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "bcfy-cli")
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
