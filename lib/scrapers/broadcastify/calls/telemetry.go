package calls

import "bcfy-backend/lib/telemetry"

var tracer = telemetry.Tracer("bcfy.lib.scrapers.broadcastify.calls")
