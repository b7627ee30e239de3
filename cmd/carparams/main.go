package main

import (
	"context"

	"carparams/cmd/carparams/commands"
	"carparams/lib/serviceutil"
)

func main() {
	ctx := serviceutil.SignalContext(context.Background())
	commands.ExecuteContext(ctx)
}
