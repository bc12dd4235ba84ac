package heap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"github.com/roach88/kbind/internal/k"
)

// ErrIPC wraps every malformed-message error from Deserialize.
var ErrIPC = errors.New("ipc")

const ipcHeaderSize = 8

// atomWidth is the payload width of each atom tag on the wire.
func atomWidth(t k.Type) int {
	switch t {
	case k.TypeBoolAtom, k.TypeByteAtom, k.TypeChar:
		return 1
	case k.TypeShortAtom:
		return 2
	case k.TypeIntAtom, k.TypeRealAtom, k.TypeMonthAtom, k.TypeDateAtom,
		k.TypeMinuteAtom, k.TypeSecondAtom, k.TypeTimeAtom:
		return 4
	case k.TypeGUIDAtom:
		return 16
	}
	return 8
}

func view(raw *k.K, off, n int) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Add(unsafe.Pointer(raw), off)), n)
}

// Serialize encodes raw as an uncompressed little-endian q IPC message
// (the same bytes -8! produces). raw is not consumed.
func (r *Runtime) Serialize(raw *k.K) ([]byte, error) {
	var body bytes.Buffer
	if err := encodeIPC(&body, raw); err != nil {
		return nil, err
	}
	total := ipcHeaderSize + body.Len()
	if total > 1<<31-1 {
		return nil, fmt.Errorf("%w: message too large (%d bytes)", ErrIPC, total)
	}
	out := make([]byte, ipcHeaderSize, total)
	out[0] = 1 // little endian
	binary.LittleEndian.PutUint32(out[4:], uint32(total))
	return append(out, body.Bytes()...), nil
}

func encodeIPC(w *bytes.Buffer, raw *k.K) error {
	if raw == nil {
		w.Write([]byte{byte(k.TypeNull), 0})
		return nil
	}
	t := raw.T
	w.WriteByte(byte(t))
	switch {
	case t == k.TypeError:
		w.WriteString(k.GoString(*k.Cast[*byte](raw)))
		w.WriteByte(0)
	case t == k.TypeSymbolAtom:
		w.WriteString(k.GoString(*k.Cast[*byte](raw)))
		w.WriteByte(0)
	case t == k.TypeGUIDAtom:
		w.Write(view(raw, k.ListDataOffset, 16))
	case t.IsAtom():
		w.Write(view(raw, k.HeaderSize, atomWidth(t)))
	case t.IsList():
		w.WriteByte(raw.U)
		n := raw.N()
		if n > 1<<31-1 {
			return fmt.Errorf("%w: list of %d elements", ErrIPC, n)
		}
		_ = binary.Write(w, binary.LittleEndian, int32(n))
		switch t {
		case k.TypeCompoundList:
			for _, child := range k.Children(raw) {
				if err := encodeIPC(w, child); err != nil {
					return err
				}
			}
		case k.TypeSymbolList:
			for _, p := range k.Slice[*byte](raw) {
				w.WriteString(k.GoString(p))
				w.WriteByte(0)
			}
		default:
			w.Write(view(raw, k.ListDataOffset, int(n)*t.ElemSize()))
		}
	case t.IsDict():
		kids := k.Children(raw)
		if err := encodeIPC(w, kids[0]); err != nil {
			return err
		}
		return encodeIPC(w, kids[1])
	case t == k.TypeTable:
		w.WriteByte(raw.U)
		return encodeIPC(w, k.Target(raw))
	case t == k.TypeNull:
		w.WriteByte(0)
	default:
		return fmt.Errorf("%w: cannot serialize %s", ErrIPC, t)
	}
	return nil
}

// Deserialize decodes a q IPC message produced by Serialize (or by q's -8!)
// into a new object owned by the caller.
func (r *Runtime) Deserialize(msg []byte) (*k.K, error) {
	if len(msg) < ipcHeaderSize {
		return nil, fmt.Errorf("%w: short header", ErrIPC)
	}
	if msg[0] != 1 {
		return nil, fmt.Errorf("%w: big-endian messages are not supported", ErrIPC)
	}
	if msg[2] != 0 {
		return nil, fmt.Errorf("%w: compressed messages are not supported", ErrIPC)
	}
	if size := binary.LittleEndian.Uint32(msg[4:]); int(size) != len(msg) {
		return nil, fmt.Errorf("%w: header length %d, message length %d", ErrIPC, size, len(msg))
	}
	d := &decoder{rt: r, buf: msg[ipcHeaderSize:]}
	raw, err := d.object()
	if err != nil {
		return nil, err
	}
	if len(d.buf) != 0 {
		r.Unref(raw)
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrIPC, len(d.buf))
	}
	return raw, nil
}

type decoder struct {
	rt  *Runtime
	buf []byte
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || len(d.buf) < n {
		return nil, fmt.Errorf("%w: truncated message", ErrIPC)
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b, nil
}

func (d *decoder) cstring() (string, error) {
	i := bytes.IndexByte(d.buf, 0)
	if i < 0 {
		return "", fmt.Errorf("%w: unterminated string", ErrIPC)
	}
	s := string(d.buf[:i])
	d.buf = d.buf[i+1:]
	return s, nil
}

func (d *decoder) object() (*k.K, error) {
	b, err := d.take(1)
	if err != nil {
		return nil, err
	}
	t := k.Type(int8(b[0]))
	switch {
	case t == k.TypeError:
		s, err := d.cstring()
		if err != nil {
			return nil, err
		}
		if raw := d.rt.NewError(s); raw != nil {
			return raw, nil
		}
		return nil, fmt.Errorf("%w: cannot allocate error", ErrIPC)
	case t == k.TypeSymbolAtom:
		s, err := d.cstring()
		if err != nil {
			return nil, err
		}
		return d.rt.NewSymbol(s)
	case t == k.TypeGUIDAtom:
		p, err := d.take(16)
		if err != nil {
			return nil, err
		}
		return d.rt.NewGUID([16]byte(p))
	case t.IsAtom():
		p, err := d.take(atomWidth(t))
		if err != nil {
			return nil, err
		}
		raw, err := d.rt.NewAtom(t)
		if err != nil {
			return nil, err
		}
		copy(view(raw, k.HeaderSize, len(p)), p)
		return raw, nil
	case t.IsList():
		return d.list(t)
	case t.IsDict():
		keys, err := d.object()
		if err != nil {
			return nil, err
		}
		values, err := d.object()
		if err != nil {
			d.rt.Unref(keys)
			return nil, err
		}
		raw, err := d.rt.NewDict(keys, values)
		if err != nil {
			return nil, err
		}
		raw.T = t
		return raw, nil
	case t == k.TypeTable:
		attr, err := d.take(1)
		if err != nil {
			return nil, err
		}
		dict, err := d.object()
		if err != nil {
			return nil, err
		}
		raw, err := d.rt.Flip(dict)
		if err != nil {
			return nil, err
		}
		raw.U = attr[0]
		return raw, nil
	case t == k.TypeNull:
		if _, err := d.take(1); err != nil {
			return nil, err
		}
		return d.rt.NewNull()
	}
	return nil, fmt.Errorf("%w: unsupported type %d", ErrIPC, int8(t))
}

func (d *decoder) list(t k.Type) (*k.K, error) {
	hdr, err := d.take(5)
	if err != nil {
		return nil, err
	}
	n := int64(int32(binary.LittleEndian.Uint32(hdr[1:])))
	if n < 0 {
		return nil, fmt.Errorf("%w: negative list length", ErrIPC)
	}
	// Reject impossible lengths before allocating. Compound items and
	// symbols take at least one byte each.
	need := n
	if t != k.TypeCompoundList && t != k.TypeSymbolList {
		need = n * int64(t.ElemSize())
	}
	if need > int64(len(d.buf)) {
		return nil, fmt.Errorf("%w: truncated message", ErrIPC)
	}
	raw, err := d.rt.NewList(t, n)
	if err != nil {
		return nil, err
	}
	raw.U = hdr[0]
	switch t {
	case k.TypeCompoundList:
		kids := k.Children(raw)
		for i := range kids {
			child, err := d.object()
			if err != nil {
				d.rt.Unref(raw)
				return nil, err
			}
			kids[i] = child
		}
	case k.TypeSymbolList:
		slots := k.Slice[*byte](raw)
		for i := range slots {
			s, err := d.cstring()
			if err == nil {
				slots[i], err = d.rt.Intern(s)
			}
			if err != nil {
				d.rt.Unref(raw)
				return nil, err
			}
		}
	default:
		p, err := d.take(int(n) * t.ElemSize())
		if err != nil {
			d.rt.Unref(raw)
			return nil, err
		}
		copy(view(raw, k.ListDataOffset, len(p)), p)
	}
	return raw, nil
}
