// Package streamserver exposes a WebSocket endpoint that accepts
// Brainfuck source, JIT-compiles it, and streams each byte the compiled
// code writes to fd 1 to the socket as it's produced, then sends the
// final cell value as a trailing text frame once the invocation
// completes.
//
// The generated code writes to stdout via a raw syscall (see
// internal/backend/amd64), not a Go io.Writer, so interception happens
// one level down: fd 1 is temporarily redirected to a pipe for the
// duration of one invocation, and a goroutine forwards whatever arrives
// on the pipe's read end to the socket. One invocation runs to
// completion synchronously per spec's no-cancellation rule; the
// websocket only changes where the output bytes end up.
package streamserver

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"syscall"
	"unsafe"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"

	"bf/internal/backend/amd64"
	"bf/internal/build"
	"bf/internal/codegen"
	"bf/internal/errors"
	"bf/internal/jit"
	"bf/internal/optimizer"
	"bf/internal/parser"
	"bf/internal/runtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades an HTTP connection to a WebSocket and runs one
// compile+invoke per text message it receives, tagged with a fresh UUID
// so concurrent sessions' stdout redirection doesn't race (invocations
// are serialized with a lock around the fd 1 swap; see run).
func Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		sessionID := uuid.New()
		result, runErr := run(string(msg), conn)
		if runErr != nil {
			conn.WriteMessage(websocket.TextMessage, []byte("error: "+runErr.Error()))
			continue
		}
		conn.WriteMessage(websocket.TextMessage,
			[]byte(fmt.Sprintf("[%s] result: %s", sessionID.String()[:8], strconv.FormatInt(result, 10))))
	}
}

var fdMu chanMutex = make(chanMutex, 1)

type chanMutex chan struct{}

func (m chanMutex) Lock()   { m <- struct{}{} }
func (m chanMutex) Unlock() { <-m }

// run compiles and executes source once, streaming stdout bytes to conn.
func run(source string, conn *websocket.Conn) (int64, error) {
	instrs, err := parser.New(source).Parse()
	if err != nil {
		return 0, err
	}
	ops := optimizer.Optimize(instrs)
	module := codegen.Translate(ops)
	code, tapeImmAt := amd64.Assemble(module.Func)

	tape := runtime.NewTape(build.DefaultTapeCells, build.DefaultTapeOffset)
	compiled, err := jit.Finalize(code, tapeImmAt, uintptr(unsafe.Pointer(tape.StartPointer())))
	if err != nil {
		return 0, err
	}

	fdMu.Lock()
	defer fdMu.Unlock()

	r, pw, err := os.Pipe()
	if err != nil {
		return 0, errors.NewCodegenError("streamserver: pipe: " + err.Error())
	}

	savedStdout, err := syscall.Dup(1)
	if err != nil {
		return 0, errors.NewCodegenError("streamserver: dup: " + err.Error())
	}
	if err := syscall.Dup2(int(pw.Fd()), 1); err != nil {
		return 0, errors.NewCodegenError("streamserver: dup2: " + err.Error())
	}
	pw.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 256)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				conn.WriteMessage(websocket.BinaryMessage, buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	result := runtime.Run(compiled, tape)

	syscall.Dup2(savedStdout, 1)
	syscall.Close(savedStdout)
	r.Close()
	<-done

	return result, nil
}

// Serve starts the streaming HTTP server on addr. Never returns unless
// the listener fails.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", Handler)
	return http.ListenAndServe(addr, mux)
}
