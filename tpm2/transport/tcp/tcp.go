// Package tcp provides access to a TPM simulator over TCP.
package tcp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/google/go-tpm-pcr/tpmutil"
)

var (
	ErrPlatformFailed = errors.New("platform command failed")
	ErrTPMFailed      = errors.New("TPM command failed")
	ErrResponseTooBig = errors.New("response too big")
	ErrTransport      = errors.New("TCP transport error")
	ErrEmptyResponse  = errors.New("TPM returned empty response (does it need to be powered on?)")
)

// The de-facto TPM-over-TCP protocol is defined by the Reference Implementation.
// See https://github.com/TrustedComputingGroup/TPM/blob/main/TPMCmd/Simulator/include/TpmTcpProtocol.h

type regularCommand uint32

const (
	tpmSendCommand regularCommand = 8
	tpmSessionEnd  regularCommand = 20
)

func (c regularCommand) String() string {
	switch c {
	case tpmSendCommand:
		return "SEND_COMMAND"
	case tpmSessionEnd:
		return "SESSION_END"
	default:
		return fmt.Sprintf("unknown TPM command (%v)", uint32(c))
	}
}

type platformCommand uint32

const (
	platformPowerOn    platformCommand = 1
	platformPowerOff   platformCommand = 2
	platformNVOn       platformCommand = 11
	platformNVOff      platformCommand = 12
	platformReset      platformCommand = 17
	platformSessionEnd platformCommand = 20
)

func (c platformCommand) String() string {
	switch c {
	case platformPowerOn:
		return "POWER_ON"
	case platformPowerOff:
		return "POWER_OFF"
	case platformNVOn:
		return "NV_ON"
	case platformNVOff:
		return "NV_OFF"
	case platformReset:
		return "RESET"
	case platformSessionEnd:
		return "SESSION_END"
	default:
		return fmt.Sprintf("unknown platform command (%v)", uint32(c))
	}
}

// TPM is a connection to a TCP TPM simulator. It is not safe for
// concurrent use.
type TPM struct {
	cmd    net.Conn
	plat   net.Conn
	closed bool
}

type tpmCommandHeader struct {
	TCPCommand regularCommand
	Locality   uint8
	CmdLen     uint32
}

// Send implements the TPMCloser interface.
func (t *TPM) Send(cmd []byte) ([]byte, error) {
	if t.closed {
		return nil, fmt.Errorf("%w: connection is closed", ErrTransport)
	}
	hdr := tpmCommandHeader{
		TCPCommand: tpmSendCommand,
		Locality:   0,
		CmdLen:     uint32(len(cmd)),
	}
	// Write the header followed by the request
	if err := binary.Write(t.cmd, binary.BigEndian, hdr); err != nil {
		return nil, fmt.Errorf("%w: could not send TPM command to service: %v", ErrTransport, err)
	}
	if n, err := t.cmd.Write(cmd); err != nil {
		return nil, fmt.Errorf("%w: could not send TPM command to service: %v", ErrTransport, err)
	} else if n != len(cmd) {
		return nil, fmt.Errorf("%w: could not send full TPM command: only sent %v out of %v bytes", ErrTransport, n, len(cmd))
	}

	// Read the response
	var rspLen uint32
	if err := binary.Read(t.cmd, binary.BigEndian, &rspLen); err != nil {
		return nil, fmt.Errorf("%w: could not read TPM response from service: %v", ErrTransport, err)
	}
	if rspLen > tpmutil.MaxResponseSize {
		return nil, fmt.Errorf("%w: response (%v bytes) was bigger than max size (%v bytes)", ErrResponseTooBig, rspLen, tpmutil.MaxResponseSize)
	}
	rsp := make([]byte, int(rspLen))
	if _, err := io.ReadFull(t.cmd, rsp); err != nil {
		return nil, fmt.Errorf("%w: could not read full TPM response: %v", ErrTransport, err)
	}
	// The server also provides a TCP error code at the end.
	var rspCode uint32
	if err := binary.Read(t.cmd, binary.BigEndian, &rspCode); err != nil {
		return nil, fmt.Errorf("%w: could not read %v result: %v", ErrTransport, hdr.TCPCommand, err)
	}
	if rspCode != 0 {
		return nil, fmt.Errorf("%w: %v returned %v", ErrTPMFailed, hdr.TCPCommand, rspCode)
	}
	if rspLen == 0 {
		return nil, ErrEmptyResponse
	}
	return rsp, nil
}

// Close implements the TPMCloser interface. It tells both services the
// session is over before closing the connections. Closing twice is a no-op.
func (t *TPM) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	var errs []error
	if err := binary.Write(t.cmd, binary.BigEndian, tpmSessionEnd); err != nil {
		errs = append(errs, fmt.Errorf("could not end TPM session: %w", err))
	}
	if err := binary.Write(t.plat, binary.BigEndian, platformSessionEnd); err != nil {
		errs = append(errs, fmt.Errorf("could not end platform session: %w", err))
	}
	errs = append(errs, t.cmd.Close(), t.plat.Close())
	return errors.Join(errs...)
}

// PowerOn powers on the TPM.
// Note: This is distinct from sending the TPM2_Startup command.
func (t *TPM) PowerOn() error {
	return errors.Join(t.sendBasicPlatformCommand(platformPowerOn),
		t.sendBasicPlatformCommand(platformNVOn))
}

// PowerOff powers off the TPM.
func (t *TPM) PowerOff() error {
	return errors.Join(t.sendBasicPlatformCommand(platformPowerOff),
		t.sendBasicPlatformCommand(platformNVOff))
}

// Reset power-cycles the TPM if it is already on. If it is not already on,
// nothing happens.
func (t *TPM) Reset() error {
	return t.sendBasicPlatformCommand(platformReset)
}

// Config provides the connection information for a running TCP TPM.
type Config struct {
	// CommandAddress is the full host:port address of the Command server.
	//
	// Default: "localhost:2321".
	CommandAddress string
	// PlatformAddress is the full host:port address of the Platform server.
	//
	// Default: "localhost:2322".
	PlatformAddress string
	// DialAttempts is how many times each address is dialed before giving
	// up. Simulators started alongside the caller may not be listening yet.
	//
	// Default: 5.
	DialAttempts uint
	// InitialBackoff is the delay before the second dial attempt; later
	// delays grow exponentially.
	//
	// Default: 100ms.
	InitialBackoff time.Duration
}

// CheckAndSetDefault fills in unset fields of c.
func (c *Config) CheckAndSetDefault() error {
	if c.CommandAddress == "" {
		c.CommandAddress = "localhost:2321"
	}
	if c.PlatformAddress == "" {
		c.PlatformAddress = "localhost:2322"
	}
	if c.CommandAddress == c.PlatformAddress {
		return fmt.Errorf("command and platform addresses are both %q", c.CommandAddress)
	}
	if c.DialAttempts == 0 {
		c.DialAttempts = 5
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 100 * time.Millisecond
	}
	return nil
}

func resolveAndConnect(ctx context.Context, addr string, config Config) (net.Conn, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.InitialBackoff

	var d net.Dialer
	conn, err := backoff.Retry(ctx, func() (net.Conn, error) {
		conn, err := d.DialContext(ctx, "tcp", addr)
		var addrErr *net.AddrError
		if errors.As(err, &addrErr) {
			return nil, backoff.Permanent(err)
		}
		return conn, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(config.DialAttempts))
	if err != nil {
		return nil, fmt.Errorf("could not dial %q: %w", addr, err)
	}
	return conn, nil
}

// Open opens a connection to the TPM. It may still need to be powered on using PowerOn().
func Open(config Config) (*TPM, error) {
	return OpenContext(context.Background(), config)
}

// OpenContext is like Open, but stops retrying to connect once ctx is done.
func OpenContext(ctx context.Context, config Config) (*TPM, error) {
	if err := config.CheckAndSetDefault(); err != nil {
		return nil, err
	}
	cmd, err := resolveAndConnect(ctx, config.CommandAddress, config)
	if err != nil {
		return nil, fmt.Errorf("could not connect to command service at %q: %w", config.CommandAddress, err)
	}
	plat, err := resolveAndConnect(ctx, config.PlatformAddress, config)
	if err != nil {
		cmd.Close()
		return nil, fmt.Errorf("could not connect to platform service at %q: %w", config.PlatformAddress, err)
	}

	return &TPM{
		cmd:  cmd,
		plat: plat,
	}, nil
}

// sendBasicPlatformCommand sends a command to the platform service. This only
// supports 'basic' commands (i.e., send just a command code, receive just a
// response code).
func (t *TPM) sendBasicPlatformCommand(cmd platformCommand) error {
	if err := binary.Write(t.plat, binary.BigEndian, cmd); err != nil {
		return fmt.Errorf("could not write %v to platform service: %w", cmd, err)
	}
	var result uint32
	if err := binary.Read(t.plat, binary.BigEndian, &result); err != nil {
		return fmt.Errorf("could not read %v result from platform service: %w", cmd, err)
	}
	if result != 0 {
		return fmt.Errorf("%w: %v returned %v", ErrPlatformFailed, cmd, result)
	}
	return nil
}
