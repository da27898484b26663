package similarity

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var (
	npyMagic   = []byte("\x93NUMPY")
	npyDescr   = regexp.MustCompile(`'descr'\s*:\s*'([^']+)'`)
	npyFortran = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	npyShape   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// LoadNPYFile reads a 2-D embedding matrix from a .npy file.
func LoadNPYFile(path string) ([][]float32, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("open embeddings %s: %w", path, err)
	}
	defer f.Close()
	m, err := LoadNPY(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("embeddings %s: %w", path, err)
	}
	return m, nil
}

// LoadNPY decodes a 2-D little-endian float32 or float64 array stored in C order.
func LoadNPY(r io.Reader) ([][]float32, error) {
	magic := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read npy preamble: %w", err)
	}
	if !bytes.Equal(magic[:len(npyMagic)], npyMagic) {
		return nil, fmt.Errorf("not an npy file")
	}

	var headerLen int
	switch major := magic[len(npyMagic)]; major {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read npy header length: %w", err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read npy header length: %w", err)
		}
		headerLen = int(n)
	default:
		return nil, fmt.Errorf("unsupported npy version %d", major)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read npy header: %w", err)
	}
	descr, rows, cols, err := parseHeader(string(header))
	if err != nil {
		return nil, err
	}

	out := make([][]float32, rows)
	switch descr {
	case "<f4":
		buf := make([]float32, rows*cols)
		if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
			return nil, fmt.Errorf("read npy data: %w", err)
		}
		for i := range out {
			out[i] = buf[i*cols : (i+1)*cols : (i+1)*cols]
		}
	case "<f8":
		buf := make([]float64, rows*cols)
		if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
			return nil, fmt.Errorf("read npy data: %w", err)
		}
		for i := range out {
			row := make([]float32, cols)
			for j := range row {
				row[j] = float32(buf[i*cols+j])
			}
			out[i] = row
		}
	default:
		return nil, fmt.Errorf("unsupported npy dtype %q", descr)
	}
	return out, nil
}

func parseHeader(h string) (string, int, int, error) {
	d := npyDescr.FindStringSubmatch(h)
	if d == nil {
		return "", 0, 0, fmt.Errorf("npy header has no descr")
	}
	if f := npyFortran.FindStringSubmatch(h); f != nil && f[1] == "True" {
		return "", 0, 0, fmt.Errorf("fortran-ordered npy arrays are not supported")
	}
	s := npyShape.FindStringSubmatch(h)
	if s == nil {
		return "", 0, 0, fmt.Errorf("npy header has no shape")
	}
	var dims []int
	for _, part := range strings.Split(s[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return "", 0, 0, fmt.Errorf("bad npy shape %q", s[1])
		}
		dims = append(dims, n)
	}
	if len(dims) != 2 {
		return "", 0, 0, fmt.Errorf("npy array must be 2-D, got shape (%s)", s[1])
	}
	if dims[0] > 0 && dims[1] > math.MaxInt32/dims[0] {
		return "", 0, 0, fmt.Errorf("npy shape (%s) too large", s[1])
	}
	return d[1], dims[0], dims[1], nil
}

// WriteNPY encodes m as a version 1.0 little-endian float32 array. Rows must share one length.
func WriteNPY(w io.Writer, m [][]float32) error {
	cols := 0
	if len(m) > 0 {
		cols = len(m[0])
	}
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", len(m), cols)
	// magic, version and length take 10 bytes; the header is padded so data starts on a 64-byte boundary.
	pad := 64 - (10+len(header)+1)%64
	if pad == 64 {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"
	if len(header) > math.MaxUint16 {
		return fmt.Errorf("npy header too long")
	}

	bw := bufio.NewWriter(w)
	_, _ = bw.Write(npyMagic)
	_, _ = bw.Write([]byte{1, 0})
	_ = binary.Write(bw, binary.LittleEndian, uint16(len(header)))
	_, _ = bw.WriteString(header)
	for i, row := range m {
		if len(row) != cols {
			return fmt.Errorf("row %d has %d columns, want %d", i, len(row), cols)
		}
		if err := binary.Write(bw, binary.LittleEndian, row); err != nil {
			return fmt.Errorf("write npy row %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write npy: %w", err)
	}
	return nil
}

// WriteNPYFile writes m to path.
func WriteNPYFile(path string, m [][]float32) error {
	f, err := os.Create(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return fmt.Errorf("create embeddings %s: %w", path, err)
	}
	if err := WriteNPY(f, m); err != nil {
		_ = f.Close()
		return fmt.Errorf("embeddings %s: %w", path, err)
	}
	return f.Close()
}
