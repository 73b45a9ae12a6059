package util

import (
	"bufio"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"strings"
	"sync"
	"time"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Writer buffers output in a strings.Builder. When the Flush or Close method is called the
// buffer is emptied and sent to the assigned output writer through channel c.
type Writer struct {
	sb strings.Builder
	c  chan string
}

// -------------------
// ----- Globals -----
// -------------------

var wc chan string     // Write channel used for receiving data from producers.
var cc chan error      // Close channel used by main thread to signal to end write operations.
var fin chan struct{}  // Closed by the listener once it has drained and exited.
var wg *sync.WaitGroup // Used for synchronising when I/O finished writing to output.

// ---------------------
// ----- Functions -----
// ---------------------

// Write writes a format string to the Writer's buffer.
func (w *Writer) Write(format string, args ...interface{}) {
	w.sb.WriteString(fmt.Sprintf(format, args...))
}

// WriteString writes a plain string to the Writer's buffer.
func (w *Writer) WriteString(s string) {
	w.sb.WriteString(s)
}

// Flush empties the Writer's buffer and sends the buffer data to the designated output writer
// over the Writer's channel.
func (w *Writer) Flush() {
	w.c <- w.sb.String()
	w.sb = strings.Builder{}
}

// Close flushes the Writer's buffer and then detaches the Writer from the listener.
func (w *Writer) Close() {
	w.Flush()
	w.c = nil
	wg.Done()
}

// NewWriter returns a new Writer used to stream output to the listener started by ListenWrite.
// Must not be called before the main thread has called ListenWrite.
func NewWriter() Writer {
	wg.Add(1)
	return Writer{
		sb: strings.Builder{},
		c:  wc,
	}
}

// ReadSource reads source code from file or stdin. If the Options structure holds a path the
// file is opened and read; else the function waits a short period for input on stdin.
func ReadSource(opt Options) (string, error) {
	if len(opt.Src) > 0 {
		// Read from file.
		b, err := ioutil.ReadFile(opt.Src)
		return string(b), err
	}

	// Read stdin.
	c := make(chan string)
	cerr := make(chan error)

	// Concurrently wait for input on stdin.
	go func(c chan string, cerr chan error) {
		defer close(c)
		defer close(cerr)
		reader := bufio.NewReader(os.Stdin)
		text, err := reader.ReadString(0)
		if err == nil {
			c <- text
		} else {
			cerr <- err
		}
	}(c, cerr)

	// Select between input from stdin or timer expiry.
	select {
	case <-time.After(500 * time.Millisecond):
		return "", errors.New("expected input from stdin, got none")
	case s := <-c:
		return s, nil
	}
}

// ListenWrite starts the output listener. Received data is written to file f when it is not
// nil, or stdout otherwise. The listener loops until a termination signal is sent using the
// Close function.
func ListenWrite(f *os.File, wgg *sync.WaitGroup) {
	wg = wgg
	wc = make(chan string, 1)
	cc = make(chan error, 1) // Make buffered to catch Close before listener is invoked.
	fin = make(chan struct{})
	var w *bufio.Writer
	if f != nil {
		// Write output to file.
		w = bufio.NewWriter(f)
	} else {
		// Write output to stdout.
		w = bufio.NewWriter(os.Stdout)
	}

	// Listen for input and termination signal. On termination any buffered output is drained
	// before the listener exits, so a Flush racing the Close signal is never dropped.
	go func(wc chan string, cc chan error) {
		defer close(fin)
		defer close(wc)
		defer close(cc)
		emit := func(s string) {
			if _, err := w.WriteString(s); err != nil {
				fmt.Println(err)
			}
			if err := w.Flush(); err != nil {
				fmt.Println(err)
			}
		}
		for {
			select {
			case s := <-wc:
				emit(s)
			case <-cc:
				for {
					select {
					case s := <-wc:
						emit(s)
					default:
						return
					}
				}
			}
		}
	}(wc, cc)
}

// Close sends the termination signal to the writer listener and blocks until the listener has
// drained any buffered output.
func Close() {
	cc <- nil
	<-fin
}
