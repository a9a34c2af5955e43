package source

import (
	"context"
	"os/exec"
	"strconv"
	"strings"

	"codeberg.org/mutker/pollctl/internal/errors"
	"github.com/google/shlex"
)

// Command runs an external program on every read and parses its standard
// output as one unsigned 16-bit integer.
type Command struct {
	path string
	args []string
}

// NewCommand splits cmdline with shell quoting rules. No shell is invoked.
func NewCommand(cmdline string) (*Command, error) {
	errFactory := errors.New()

	argv, err := shlex.Split(cmdline)
	if err != nil {
		return nil, errFactory.Wrap(ErrInvalidCommand, err)
	}
	if len(argv) == 0 {
		return nil, errFactory.WithData(ErrInvalidCommand, cmdline)
	}

	return &Command{path: argv[0], args: argv[1:]}, nil
}

func (c *Command) Name() string {
	return "command:" + c.path
}

func (c *Command) Read(ctx context.Context) (uint16, error) {
	errFactory := errors.New()

	out, err := exec.CommandContext(ctx, c.path, c.args...).Output()
	if err != nil {
		return 0, errFactory.Wrap(ErrCommandFailed, err)
	}

	return parseSample(string(out))
}

func (*Command) Close() error {
	return nil
}

func parseSample(raw string) (uint16, error) {
	errFactory := errors.New()
	text := strings.TrimSpace(raw)

	value, err := strconv.ParseUint(text, 10, 16)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			return 0, errFactory.WithData(ErrSampleRange, text)
		}

		return 0, errFactory.WithData(ErrInvalidSample, text)
	}

	return uint16(value), nil
}
