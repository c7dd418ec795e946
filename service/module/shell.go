package module

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/gosh"
	"github.com/viant/gosh/runner/local"
)

// Shell is the host module exposing local command execution to scripts as
// shell.run(command). The underlying shell session is created on first use
// and reused across runs so that working directory changes persist.
type Shell struct {
	mux     sync.Mutex
	service *gosh.Service
}

// Run executes a command in the local shell and returns its combined output.
// A non-zero exit status is reported as an error carrying the output.
func (s *Shell) Run(command string) (string, error) {
	ctx := context.Background()
	service, err := s.session(ctx)
	if err != nil {
		return "", err
	}
	output, status, err := service.Run(ctx, command)
	if err != nil {
		return "", err
	}
	if status != 0 {
		return output, fmt.Errorf("command %q exited with status %d", command, status)
	}
	return output, nil
}

func (s *Shell) session(ctx context.Context) (*gosh.Service, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.service != nil {
		return s.service, nil
	}
	service, err := gosh.New(ctx, local.New())
	if err != nil {
		return nil, fmt.Errorf("failed to open shell session: %w", err)
	}
	s.service = service
	return s.service, nil
}
