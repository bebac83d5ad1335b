package transport_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/luma/exar/transport"
)

// recorder is a transport.Handler that records the events it receives.
type recorder struct {
	mu     sync.Mutex
	events []string
	data   []byte
	errs   []error

	opened chan struct{}
	closed chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		opened: make(chan struct{}),
		closed: make(chan struct{}),
	}
}

func (r *recorder) Opened() {
	r.record("opened")
	close(r.opened)
}

func (r *recorder) Data(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data = append(r.data, data...)
}

func (r *recorder) Error(err error) {
	r.record("error")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) Closed() {
	r.record("closed")
	close(r.closed)
}

func (r *recorder) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.events...)
}

func (r *recorder) Received() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return string(r.data)
}

var _ = Describe("transport", func() {
	Describe("TCP", func() {
		var (
			listener net.Listener
			accepted chan net.Conn
			tcp      *transport.TCP
		)

		BeforeEach(func() {
			var err error

			listener, err = net.Listen("tcp", "127.0.0.1:0")
			Expect(err).To(Succeed())

			accepted = make(chan net.Conn, 1)
			go func() {
				conn, err := listener.Accept()
				if err == nil {
					accepted <- conn
				}
			}()

			log, err := zap.NewDevelopment()
			Expect(err).To(Succeed())

			tcp = transport.NewTCP(transport.Options{
				DialTimeout:  time.Second,
				WriteTimeout: time.Second,
				Log:          log,
			})
		})

		AfterEach(func() {
			listener.Close()
		})

		accept := func() net.Conn {
			var conn net.Conn
			Eventually(accepted).Should(Receive(&conn))
			return conn
		}

		It("reports opened then delivers the data the server sends", func() {
			r := newRecorder()
			socket := tcp.Open(context.Background(), listener.Addr().String(), r)
			defer socket.Close()

			Eventually(r.opened).Should(BeClosed())

			server := accept()
			defer server.Close()

			_, err := server.Write([]byte("Connected\n"))
			Expect(err).To(Succeed())

			Eventually(r.Received).Should(Equal("Connected\n"))
		})

		It("sends data to the server", func() {
			r := newRecorder()
			socket := tcp.Open(context.Background(), listener.Addr().String(), r)
			defer socket.Close()

			Eventually(r.opened).Should(BeClosed())

			server := accept()
			defer server.Close()

			Expect(socket.Send([]byte("Connect\tsales\n"))).To(Succeed())

			line, err := bufio.NewReader(server).ReadString('\n')
			Expect(err).To(Succeed())
			Expect(line).To(Equal("Connect\tsales\n"))
		})

		It("reports only closed when the server hangs up", func() {
			r := newRecorder()
			socket := tcp.Open(context.Background(), listener.Addr().String(), r)
			defer socket.Close()

			Eventually(r.opened).Should(BeClosed())
			accept().Close()

			Eventually(r.closed).Should(BeClosed())
			Expect(r.Events()).To(Equal([]string{"opened", "closed"}))
		})

		It("reports closed when closed locally", func() {
			r := newRecorder()
			socket := tcp.Open(context.Background(), listener.Addr().String(), r)

			Eventually(r.opened).Should(BeClosed())
			server := accept()
			defer server.Close()

			Expect(socket.Close()).To(Succeed())
			Eventually(r.closed).Should(BeClosed())
			Expect(r.Events()).To(Equal([]string{"opened", "closed"}))

			Expect(socket.Close()).To(Succeed())
			Expect(socket.Send([]byte("late\n"))).To(MatchError(transport.ErrNotOpen))
		})

		It("reports an error then closed when it cannot connect", func() {
			addr := listener.Addr().String()
			listener.Close()

			r := newRecorder()
			tcp.Open(context.Background(), addr, r)

			Eventually(r.closed).Should(BeClosed())
			Expect(r.Events()).To(Equal([]string{"error", "closed"}))

			var terr *transport.Error
			Expect(errors.As(r.errs[0], &terr)).To(BeTrue())
			Expect(terr.Op).To(Equal("dial"))
		})

		It("gives up writing to a server that stops reading", func() {
			slow := transport.NewTCP(transport.Options{
				WriteTimeout: 200 * time.Millisecond,
			})

			r := newRecorder()
			socket := slow.Open(context.Background(), listener.Addr().String(), r)
			defer socket.Close()

			Eventually(r.opened).Should(BeClosed())

			// Accepted but never read from
			server := accept()
			defer server.Close()

			sent := make(chan error, 1)
			go func() {
				sent <- socket.Send(bytes.Repeat([]byte("a"), 64<<20))
			}()

			var err error
			Eventually(sent, 5*time.Second).Should(Receive(&err))

			var terr *transport.Error
			Expect(errors.As(err, &terr)).To(BeTrue())
			Expect(terr.Op).To(Equal("write"))
			Expect(errors.Is(err, os.ErrDeadlineExceeded)).To(BeTrue())
		})

		It("refuses to send before the socket is open", func() {
			r := newRecorder()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			socket := tcp.Open(ctx, listener.Addr().String(), r)
			Expect(socket.Send([]byte("too early\n"))).To(MatchError(transport.ErrNotOpen))

			Eventually(r.closed).Should(BeClosed())
		})
	})
})
