//go:build js && wasm

package main

import (
	"syscall/js"

	"rps-lite/replay"
)

func main() {
	js.Global().Set("__replayInit", js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) < 1 {
			return missingArg("missing request payload")
		}
		return replay.MarshalResponse(replay.HandleInit(args[0].String()))
	}))
	// __replayDecode opens one envelopeB64, e.g. from /api/matches/{id}/events.
	js.Global().Set("__replayDecode", js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) < 1 {
			return missingArg("missing envelope")
		}
		return replay.MarshalResponse(replay.HandleDecode(args[0].String()))
	}))

	select {}
}

func missingArg(msg string) string {
	return replay.MarshalResponse(replay.InitResponse{
		Error: &replay.ReplayError{StepIndex: -1, Reason: replay.ReasonInvalidRequest, Message: msg},
	})
}
