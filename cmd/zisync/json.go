package main

import (
	"encoding/json"
	"io"

	"github.com/zisync/zisync/internal/engine"
	"github.com/zisync/zisync/internal/monitor"
)

func printTreeStatusJSON(w io.Writer, st *engine.TreeStatus) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

func printTransfersJSON(w io.Writer, transfers []monitor.Transfer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(transfers)
}
