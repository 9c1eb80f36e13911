package bridge

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// scopedFile owns an *os.File until Detach hands its descriptor away.
// Close is always safe to defer.
type scopedFile struct {
	file *os.File
}

func acquire(f *os.File) *scopedFile {
	return &scopedFile{file: f}
}

// Detach returns a descriptor the caller owns. The *os.File keeps its own
// descriptor and is still released by Close, so the runtime finalizer can
// never close the one handed out. The copy is close-on-exec like every
// descriptor the runtime opens.
func (s *scopedFile) Detach() (int, error) {
	if s.file == nil {
		return InvalidDescriptor, fmt.Errorf("detach: %w", os.ErrClosed)
	}
	fd, err := unix.FcntlInt(s.file.Fd(), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return InvalidDescriptor, fmt.Errorf("detach %s: %w", s.file.Name(), err)
	}
	return fd, nil
}

// Close releases the wrapped file.
func (s *scopedFile) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
