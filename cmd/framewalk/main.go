// Command framewalk builds a synthetic stack and walks it, printing the
// resolved frames. It exists to demo and debug the walker without a live
// runtime.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/cloudcmds/framewalk/dump"
	"github.com/cloudcmds/framewalk/frame"
	"github.com/cloudcmds/framewalk/internal/stackgen"
	"github.com/cloudcmds/framewalk/walker"
)

func main() {
	var (
		detail  = flag.Bool("detail", false, "print raw slot contents for every frame")
		verbose = flag.Bool("verbose", false, "log walk events")
		noColor = flag.Bool("no-color", false, "disable colored output")
	)
	flag.Parse()

	if *noColor {
		color.NoColor = true
	}

	logger := zerolog.Nop()
	if *verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Logger()
	}

	ch := stackgen.BuildChain(stackgen.DefaultChainConfig())
	w := walker.New(ch.Thread, ch.Env,
		walker.WithLogger(logger),
		walker.WithRegisterUpdates(),
	)

	frames, err := w.Frames(ch.Interpreted)
	if err != nil {
		fmt.Fprintf(os.Stderr, "walk failed: %v\n", err)
		os.Exit(1)
	}

	dump.Frames(os.Stdout, frames)
	if *detail {
		for i := range frames {
			fmt.Println()
			dump.FrameDetail(os.Stdout, &frames[i], ch.Thread)
		}
	}

	var val frame.Value
	var obj frame.ObjRef
	ch.Mem.SetWord(ch.Interpreted.InterpreterFrameTOSAddress(ch.Thread), 42)
	ch.Interpreted.Result(ch.Thread, ch.Env, ch.Method.Result, &obj, &val)
	fmt.Printf("\ntop frame %s result: %d\n", ch.Method.Result, val.J)
}
