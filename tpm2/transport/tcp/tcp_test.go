package tcp

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/google/go-tpm-pcr/tpm2"
	"github.com/google/go-tpm-pcr/tpm2/transport"
	testhelper "github.com/google/go-tpm-pcr/tpm2/transport/test"
	"github.com/google/go-tpm-pcr/tpmutil"
)

// fakeSimulator speaks the command and platform halves of the simulator
// protocol on two localhost listeners.
type fakeSimulator struct {
	cmdL, platL net.Listener

	mu       sync.Mutex
	commands [][]byte
	platform []platformCommand
	respond  func(cmd []byte) (rsp []byte, code uint32)
	wg       sync.WaitGroup
}

func newFakeSimulator(t *testing.T, respond func([]byte) ([]byte, uint32)) *fakeSimulator {
	t.Helper()
	cmdL, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() = %v", err)
	}
	platL, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		cmdL.Close()
		t.Fatalf("net.Listen() = %v", err)
	}
	f := &fakeSimulator{cmdL: cmdL, platL: platL, respond: respond}
	f.wg.Add(2)
	go f.serveCommands()
	go f.servePlatform()
	t.Cleanup(func() {
		cmdL.Close()
		platL.Close()
		f.wg.Wait()
	})
	return f
}

func (f *fakeSimulator) config() Config {
	return Config{
		CommandAddress:  f.cmdL.Addr().String(),
		PlatformAddress: f.platL.Addr().String(),
	}
}

func (f *fakeSimulator) serveCommands() {
	defer f.wg.Done()
	conn, err := f.cmdL.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		var code regularCommand
		if err := binary.Read(conn, binary.BigEndian, &code); err != nil {
			return
		}
		if code == tpmSessionEnd {
			return
		}
		var locality uint8
		var n uint32
		if err := binary.Read(conn, binary.BigEndian, &locality); err != nil {
			return
		}
		if err := binary.Read(conn, binary.BigEndian, &n); err != nil {
			return
		}
		cmd := make([]byte, n)
		if _, err := io.ReadFull(conn, cmd); err != nil {
			return
		}
		f.mu.Lock()
		f.commands = append(f.commands, cmd)
		f.mu.Unlock()

		rsp, rc := f.respond(cmd)
		binary.Write(conn, binary.BigEndian, uint32(len(rsp)))
		conn.Write(rsp)
		binary.Write(conn, binary.BigEndian, rc)
	}
}

func (f *fakeSimulator) servePlatform() {
	defer f.wg.Done()
	conn, err := f.platL.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		var code platformCommand
		if err := binary.Read(conn, binary.BigEndian, &code); err != nil {
			return
		}
		if code == platformSessionEnd {
			return
		}
		f.mu.Lock()
		f.platform = append(f.platform, code)
		f.mu.Unlock()
		binary.Write(conn, binary.BigEndian, uint32(0))
	}
}

func TestCheckAndSetDefault(t *testing.T) {
	var c Config
	if err := c.CheckAndSetDefault(); err != nil {
		t.Fatalf("CheckAndSetDefault() = %v", err)
	}
	want := Config{
		CommandAddress:  "localhost:2321",
		PlatformAddress: "localhost:2322",
		DialAttempts:    5,
		InitialBackoff:  100 * time.Millisecond,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("CheckAndSetDefault() mismatch (-want +got):\n%s", diff)
	}

	same := Config{CommandAddress: "localhost:1", PlatformAddress: "localhost:1"}
	if err := same.CheckAndSetDefault(); err == nil {
		t.Error("CheckAndSetDefault() with identical addresses succeeded")
	}
}

func TestReadPCROverTCP(t *testing.T) {
	sel, err := tpm2.NewPCRSelection(3, tpm2.AlgSHA256)
	if err != nil {
		t.Fatal(err)
	}
	digest := make(tpm2.Digest, 32)
	for i := range digest {
		digest[i] = 0xA0 + byte(i)
	}
	rsp := testhelper.PCRReadResponse(t, 9, sel, digest)
	f := newFakeSimulator(t, func([]byte) ([]byte, uint32) { return rsp, 0 })

	tpm, err := Open(f.config())
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	if err := tpm.PowerOn(); err != nil {
		t.Errorf("PowerOn() = %v", err)
	}
	got, err := tpm2.ReadPCR(tpm, 3, tpm2.AlgSHA256)
	if err != nil {
		t.Fatalf("ReadPCR() = %v", err)
	}
	if diff := cmp.Diff(digest, got); diff != "" {
		t.Errorf("ReadPCR() mismatch (-want +got):\n%s", diff)
	}
	if err := tpm.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	if err := tpm.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if _, err := tpm.Send(wantCommand(t)); !errors.Is(err, ErrTransport) {
		t.Errorf("Send() after Close = %v, want ErrTransport", err)
	}

	f.cmdL.Close()
	f.platL.Close()
	f.wg.Wait()
	if diff := cmp.Diff([][]byte{wantCommand(t)}, f.commands); diff != "" {
		t.Errorf("commands sent (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]platformCommand{platformPowerOn, platformNVOn}, f.platform); diff != "" {
		t.Errorf("platform commands sent (-want +got):\n%s", diff)
	}
}

// wantCommand is the PCR_Read command for PCR 3 of the SHA256 bank.
func wantCommand(t *testing.T) []byte {
	t.Helper()
	cmd, err := tpm2.NewPCRReadCommand(3, tpm2.AlgSHA256)
	if err != nil {
		t.Fatal(err)
	}
	b, err := cmd.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestSendErrors(t *testing.T) {
	tests := []struct {
		name string
		rsp  []byte
		code uint32
		want error
	}{
		{"TCPFailure", []byte{0x80, 0x01}, 1, ErrTPMFailed},
		{"Empty", nil, 0, ErrEmptyResponse},
		{"TooBig", make([]byte, tpmutil.MaxResponseSize+1), 0, ErrResponseTooBig},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeSimulator(t, func([]byte) ([]byte, uint32) { return tc.rsp, tc.code })
			tpm, err := Open(f.config())
			if err != nil {
				t.Fatalf("Open() = %v", err)
			}
			defer tpm.Close()
			_, err = tpm2.ReadPCR(tpm, 0, tpm2.AlgSHA1)
			if !errors.Is(err, tc.want) {
				t.Errorf("ReadPCR() = %v, want %v", err, tc.want)
			}
			var te *tpm2.TransportError
			if !errors.As(err, &te) {
				t.Errorf("ReadPCR() = %T, want *tpm2.TransportError", err)
			}
		})
	}
}

func TestOpenGivesUp(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() = %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = OpenContext(ctx, Config{
		CommandAddress:  addr,
		PlatformAddress: "127.0.0.1:1",
		DialAttempts:    2,
		InitialBackoff:  time.Millisecond,
	})
	if err == nil {
		t.Fatal("OpenContext() to a closed port succeeded")
	}
}

func TestTPM(t *testing.T) {
	testhelper.RunTest(t, []error{ErrTransport, ErrEmptyResponse}, func() (transport.TPMCloser, error) {
		tpm, err := Open(Config{DialAttempts: 1})
		if err != nil {
			// No simulator is listening on the default ports.
			t.Skipf("no TCP simulator: %v", err)
		}
		return tpm, nil
	})
}
