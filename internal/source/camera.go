package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// maxStderr bounds how much of a failing capture command's stderr is kept.
const maxStderr = 512

// CommandCamera captures images by running an external capture tool that
// writes the encoded image to stdout (fswebcam, libcamera-still, ffmpeg...).
type CommandCamera struct {
	args []string
}

// NewCommandCamera creates a camera running args[0] with args[1:].
func NewCommandCamera(args []string) (*CommandCamera, error) {
	if len(args) == 0 || args[0] == "" {
		return nil, errors.New("camera command is empty")
	}
	return &CommandCamera{args: append([]string(nil), args...)}, nil
}

// Name returns the adapter identifier.
func (c *CommandCamera) Name() string { return "camera:" + c.args[0] }

// Acquire runs the capture command once and returns its stdout.
func (c *CommandCamera) Acquire(ctx context.Context) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.args[0], c.args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, acquisitionErr(c.Name(), ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderr {
			msg = msg[:maxStderr]
		}
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, acquisitionErr(c.Name(), err)
	}
	if stdout.Len() == 0 {
		return nil, acquisitionErr(c.Name(), errors.New("capture produced no image data"))
	}
	return stdout.Bytes(), nil
}

// FileCamera returns the snapshot most recently written to a file by an
// external capture daemon.
type FileCamera struct {
	path string
}

// NewFileCamera creates a camera reading snapshots from path.
func NewFileCamera(path string) *FileCamera {
	return &FileCamera{path: path}
}

// Name returns the adapter identifier.
func (c *FileCamera) Name() string { return "camera:file" }

// Acquire reads the snapshot file.
func (c *FileCamera) Acquire(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, acquisitionErr(c.Name(), err)
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, acquisitionErr(c.Name(), err)
	}
	if len(data) == 0 {
		return nil, acquisitionErr(c.Name(), fmt.Errorf("snapshot %s is empty", c.path))
	}
	return data, nil
}
