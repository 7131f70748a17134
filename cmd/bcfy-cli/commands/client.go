package commands

import (
	"bcfy-backend/lib/configutil"
	"bcfy-backend/lib/ratelimit"
	"bcfy-backend/lib/scrapers/broadcastify/core"
	"bcfy-backend/lib/serviceutil"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

type Config struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

var limiter = ratelimit.NewLimiter(nil)

func createClient(ctx context.Context, login bool) *core.Client {
	ctx, cancel := context.WithTimeout(ctx, time.Second*30)
	defer cancel()

	client, err := core.NewClient(ctx, core.ClientOptions{
		BaseUrl: core.DefaultBaseUrl,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize client", err)
	}
	if !login {
		return client
	}

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	slog.Info("logging in", "username", cfg.Username)

	_, err = client.Login(ctx, cfg.Username, cfg.Password)
	if err != nil {
		serviceutil.Fatal("failed to login", err)
	}
	return client
}

func newTable(header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row(header))
	return t
}
