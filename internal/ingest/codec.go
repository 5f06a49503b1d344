package ingest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"monitoring/internal/command"
)

const maxPooledBatchCapacity = 4096

var errEmptyPayload = errors.New("empty payload")

type decodeScratch struct {
	commands []command.Command
}

var decodeScratchPool = sync.Pool{
	New: func() any {
		return &decodeScratch{commands: make([]command.Command, 0, 16)}
	},
}

// decodeCommandPayload parses newline-separated command lines.
// Params: raw payload and receive time.
// Returns: parsed commands (blank lines and "#" comments skipped) or the first line error.
func decodeCommandPayload(raw []byte, now time.Time) ([]command.Command, error) {
	scratch := acquireDecodeScratch()
	defer releaseDecodeScratch(scratch)
	commands, err := decodeCommandPayloadInto(raw, now, scratch)
	if err != nil {
		return nil, err
	}
	return append([]command.Command(nil), commands...), nil
}

func decodeCommandPayloadInto(raw []byte, now time.Time, scratch *decodeScratch) ([]command.Command, error) {
	payload := bytes.TrimSpace(raw)
	if len(payload) == 0 {
		return nil, errEmptyPayload
	}
	commands := scratch.commands[:0]
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	scanner.Buffer(make([]byte, 0, 4096), len(payload)+1)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		cmd, err := command.Parse(string(line), now)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		commands = append(commands, cmd)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan command payload: %w", err)
	}
	if len(commands) == 0 {
		return nil, errEmptyPayload
	}
	scratch.commands = commands
	return commands, nil
}

func acquireDecodeScratch() *decodeScratch {
	return decodeScratchPool.Get().(*decodeScratch)
}

func releaseDecodeScratch(scratch *decodeScratch) {
	if scratch == nil {
		return
	}
	for i := range scratch.commands {
		scratch.commands[i] = command.Command{}
	}
	if cap(scratch.commands) > maxPooledBatchCapacity {
		scratch.commands = make([]command.Command, 0, 16)
	} else {
		scratch.commands = scratch.commands[:0]
	}
	decodeScratchPool.Put(scratch)
}
