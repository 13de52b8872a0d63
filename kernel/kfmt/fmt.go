package kfmt

import (
	"io"
	"unsafe"
)

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	numFmtBuf = []byte("012345678901234567890123456789012")

	// singleByte is used as a shared buffer for passing single characters
	// to doWrite.
	singleByte = []byte(" ")

	// earlyPrintBuffer stores Printf output until the UART is configured.
	earlyPrintBuffer earlyBuffer

	// outputSink is the io.Writer where Printf sends its output. If set to
	// nil, the output is redirected to the earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the earlyPrintBuffer to it. If the early output
// overflowed, the number of lost bytes is reported after the copy.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w == nil {
		return
	}

	io.Copy(w, &earlyPrintBuffer)
	if dropped := earlyPrintBuffer.dropped; dropped != 0 {
		earlyPrintBuffer.dropped = 0
		Fprintf(w, "[kfmt] %d bytes of early output were dropped\n", dropped)
	}
}

// Printf provides a minimal Printf implementation that can be safely used
// while the memory manager is still bringing up the kernel heap. This
// implementation does not allocate any memory.
//
// The following subset of the fmt.Printf verbs is supported:
//
// Strings:
//
//	%s the uninterpreted bytes of the string or byte slice
//
// Integers:
//
//	%o base 8
//	%d base 10
//	%x base 16, with lower-case letters for a-f
//
// Booleans:
//
//	%t "true" or "false"
//
// Width is specified by an optional decimal number immediately preceding the
// verb. Strings and base-10 integers are left-padded with spaces; base-8 and
// base-16 integers are left-padded with zeroes.
//
// Pointers (%p) are not supported as printing them requires the reflect
// package, whose use makes the compiler emit allocating interface
// conversions for the argument slice.
//
// The output of Printf is written to the UART once SetOutputSink has been
// called. Until then it is buffered in a ring buffer.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex int
		padLen   int
		literal  int
		i        int
	)

	for i < len(format) {
		if format[i] != '%' {
			i++
			continue
		}

		writeLiteral(w, format, literal, i)

		padLen = 0
		for i++; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
			padLen = (padLen * 10) + int(format[i]-'0')
		}

		switch {
		case i == len(format):
			doWrite(w, errNoVerb)
		case format[i] == '%':
			singleByte[0] = '%'
			doWrite(w, singleByte)
		case !isVerb(format[i]):
			doWrite(w, errNoVerb)
		case argIndex >= len(args):
			doWrite(w, errMissingArg)
		default:
			fmtArg(w, format[i], args[argIndex], padLen)
			argIndex++
		}

		i++
		literal = i
	}

	writeLiteral(w, format, literal, len(format))

	for ; argIndex < len(args); argIndex++ {
		doWrite(w, errExtraArg)
	}
}

func isVerb(ch byte) bool {
	switch ch {
	case 'd', 'x', 'o', 's', 't':
		return true
	}
	return false
}

func fmtArg(w io.Writer, verb byte, arg interface{}, padLen int) {
	switch verb {
	case 'o':
		fmtInt(w, arg, 8, padLen)
	case 'd':
		fmtInt(w, arg, 10, padLen)
	case 'x':
		fmtInt(w, arg, 16, padLen)
	case 's':
		fmtString(w, arg, padLen)
	case 't':
		fmtBool(w, arg)
	}
}

// writeLiteral writes format[from:to]. Slicing the format string would
// trigger a memory allocation so the bytes are written one at a time.
func writeLiteral(w io.Writer, format string, from, to int) {
	for ; from < to; from++ {
		singleByte[0] = format[from]
		doWrite(w, singleByte)
	}
}

// fmtBool prints a formatted version of boolean value v.
func fmtBool(w io.Writer, v interface{}) {
	bVal, ok := v.(bool)
	switch {
	case !ok:
		doWrite(w, errWrongArgType)
	case bVal:
		doWrite(w, trueValue)
	default:
		doWrite(w, falseValue)
	}
}

// fmtString prints a formatted version of string or []byte value v, applying
// the padding specified by padLen.
func fmtString(w io.Writer, v interface{}, padLen int) {
	switch castedVal := v.(type) {
	case string:
		fmtRepeat(w, ' ', padLen-len(castedVal))
		writeLiteral(w, castedVal, 0, len(castedVal))
	case []byte:
		fmtRepeat(w, ' ', padLen-len(castedVal))
		doWrite(w, castedVal)
	default:
		doWrite(w, errWrongArgType)
	}
}

// fmtRepeat writes count bytes with value ch.
func fmtRepeat(w io.Writer, ch byte, count int) {
	singleByte[0] = ch
	for i := 0; i < count; i++ {
		doWrite(w, singleByte)
	}
}

// intValue returns the magnitude and sign of an integer argument.
func intValue(v interface{}) (uval uint64, negative, ok bool) {
	var sval int64

	switch t := v.(type) {
	case uint8:
		return uint64(t), false, true
	case uint16:
		return uint64(t), false, true
	case uint32:
		return uint64(t), false, true
	case uint64:
		return t, false, true
	case uint:
		return uint64(t), false, true
	case uintptr:
		return uint64(t), false, true
	case int8:
		sval = int64(t)
	case int16:
		sval = int64(t)
	case int32:
		sval = int64(t)
	case int64:
		sval = t
	case int:
		sval = int64(t)
	default:
		return 0, false, false
	}

	if sval < 0 {
		return uint64(-sval), true, true
	}
	return uint64(sval), false, true
}

// fmtInt prints out a formatted version of v in the requested base, applying
// the padding specified by padLen.
func fmtInt(w io.Writer, v interface{}, base uint64, padLen int) {
	uval, negative, ok := intValue(v)
	if !ok {
		doWrite(w, errWrongArgType)
		return
	}

	if padLen >= maxBufSize {
		padLen = maxBufSize - 1
	}

	padCh := byte('0')
	if base == 10 {
		padCh = ' '
	}

	// digits are generated least significant first and reversed at the end
	right := 0
	for right < maxBufSize {
		digit := uval % base
		if digit < 10 {
			numFmtBuf[right] = byte(digit) + '0'
		} else {
			numFmtBuf[right] = byte(digit-10) + 'a'
		}
		right++

		if uval /= base; uval == 0 {
			break
		}
	}

	for ; right < padLen; right++ {
		numFmtBuf[right] = padCh
	}

	// The sign replaces the leftmost blank pad character or, if the number
	// fills the width, is appended as an extra character.
	if negative {
		end := right - 1
		for numFmtBuf[end] == ' ' {
			end--
		}

		if end == right-1 {
			right++
		}
		numFmtBuf[end+1] = '-'
	}

	for left, last := 0, right-1; left < last; left, last = left+1, last-1 {
		numFmtBuf[left], numFmtBuf[last] = numFmtBuf[last], numFmtBuf[left]
	}

	doWrite(w, numFmtBuf[:right])
}

// doWrite is a proxy that uses the runtime.noescape hack to hide p from the
// compiler's escape analysis. Without it the compiler flags p as escaping
// through the unknown io.Writer and every Printf call allocates, which is
// not allowed while the heap allocator itself is logging.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyPrintBuffer.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. This function is copied over
// from runtime/stubs.go
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
