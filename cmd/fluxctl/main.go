// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command fluxctl inspects and edits persisted shared cells.
//
// Usage:
//
//	fluxctl [--backend file|sqlite] [--codec json|yaml|msgpack] <command>
//
// Commands:
//
//	get KEY...       print stored values
//	set KEY VALUE    store VALUE (JSON, or a bare string)
//	rm KEY...        delete stored values
//	list             list stored keys
//	watch KEY...     print every change until interrupted
//	version          print the version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
