package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"time"

	"ralph/internal/shutdown"
)

// tailLog follows path from creation, emitting one truncated human-
// readable log line per JSON record, until ctx is cancelled or flag
// trips. It tolerates the file not existing yet at call time.
func tailLog(ctx context.Context, path string, flag *shutdown.Flag) error {
	var f *os.File
	var offset int64

	ticker := time.NewTicker(150 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if f != nil {
				f.Close()
			}
			return nil
		case <-ticker.C:
			if flag != nil && flag.Tripped() {
				if f != nil {
					f.Close()
				}
				return nil
			}
		}

		if f == nil {
			opened, err := os.Open(path)
			if err != nil {
				continue
			}
			f = opened
		}

		info, err := f.Stat()
		if err != nil || info.Size() <= offset {
			continue
		}

		if _, err := f.Seek(offset, 0); err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			offset += int64(len(line)) + 1
			emitLine(line)
		}
	}
}

func emitLine(raw []byte) {
	var record map[string]interface{}
	if err := json.Unmarshal(raw, &record); err != nil {
		return
	}
	text, _ := json.Marshal(record)
	s := string(text)
	if len(s) > 400 {
		s = s[:400] + "…"
	}
	log.Info("codex", "line", s)
}
