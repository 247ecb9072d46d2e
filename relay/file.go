// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"fmt"
	"os"
	"sync"

	"github.com/ava-labs/avalanchego/utils/formatting"

	"github.com/rift-labs/riftvm/kernel"
)

// FileSink appends one "<seq> <hex wire bytes>" line per message. It is
// the development stand-in for a real base-chain bridge.
type FileSink struct {
	mu sync.Mutex
	f  *os.File
}

func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileSink{f: f}, nil
}

func (s *FileSink) Deliver(msg *kernel.OutboxMessage) error {
	raw, err := kernel.Codec.Marshal(kernel.CodecVersion, msg)
	if err != nil {
		return err
	}
	encoded, err := formatting.Encode(formatting.Hex, raw)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.f, "%d %s\n", msg.Seq, encoded); err != nil {
		return err
	}
	return s.f.Sync()
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
