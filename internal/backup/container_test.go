package backup

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildContainer(t *testing.T, entries map[string][]byte, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	cw, err := NewWriter(&buf)
	require.NoError(t, err)
	for _, name := range order {
		require.NoError(t, cw.WriteBytes(name, entries[name]))
	}
	return buf.Bytes()
}

func TestContainer_ExactLayout(t *testing.T) {
	data := buildContainer(t, map[string][]byte{"ab": {0xDE, 0xAD}}, []string{"ab"})

	want := []byte{
		'L', 'U', 'C', 'B',
		1, 0, 0, 0, // version
		2, 0, 0, 0, // name length
		'a', 'b',
		2, 0, 0, 0, 0, 0, 0, 0, // data length
		0xDE, 0xAD,
	}
	assert.Equal(t, want, data)
}

func TestContainer_RoundTrip(t *testing.T) {
	entries := map[string][]byte{
		ManifestEntry:          []byte("manifest"),
		"photos/a.enc":         bytes.Repeat([]byte{1}, 200_000),
		"thumbnails/a.enc":     {},
		"photos/unicode-é.enc": []byte("x"),
	}
	order := []string{ManifestEntry, "photos/a.enc", "thumbnails/a.enc", "photos/unicode-é.enc"}

	cr, err := NewReader(bytes.NewReader(buildContainer(t, entries, order)))
	require.NoError(t, err)
	assert.Equal(t, ContainerVersion, cr.Version())

	var names []string
	for {
		hdr, err := cr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)

		got, err := io.ReadAll(cr)
		require.NoError(t, err)
		assert.Equal(t, entries[hdr.Name], got)
		assert.Equal(t, int64(len(got)), hdr.Size)
	}
	assert.Equal(t, order, names)
}

func TestContainer_NextSkipsUnreadData(t *testing.T) {
	entries := map[string][]byte{"one": bytes.Repeat([]byte{9}, 100_000), "two": []byte("second")}
	cr, err := NewReader(bytes.NewReader(buildContainer(t, entries, []string{"one", "two"})))
	require.NoError(t, err)

	hdr, err := cr.Next()
	require.NoError(t, err)
	assert.Equal(t, "one", hdr.Name)

	hdr, err = cr.Next()
	require.NoError(t, err)
	assert.Equal(t, "two", hdr.Name)
	got, err := io.ReadAll(cr)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	_, err = cr.Next()
	assert.Equal(t, io.EOF, err)
}

func header(version uint32) []byte {
	b := []byte(Magic)
	return binary.LittleEndian.AppendUint32(b, version)
}

func TestContainer_RejectsBadInput(t *testing.T) {
	valid := buildContainer(t, map[string][]byte{"photos/a.enc": []byte("payload")}, []string{"photos/a.enc"})

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrInvalidContainer},
		{"bad magic", append([]byte("ZIPX"), valid[4:]...), ErrInvalidContainer},
		{"short header", []byte("LUC"), ErrInvalidContainer},
		{"missing version", []byte("LUCB\x01"), ErrInvalidContainer},
		{"version zero", header(0), ErrInvalidContainer},
		{"newer version", header(ContainerVersion + 1), ErrUnsupportedVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func readAllEntries(data []byte) error {
	cr, err := NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	for {
		_, err := cr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := io.ReadAll(cr); err != nil {
			return err
		}
	}
}

func TestContainer_RejectsMalformedEntries(t *testing.T) {
	valid := buildContainer(t, map[string][]byte{"photos/a.enc": []byte("payload")}, []string{"photos/a.enc"})
	require.NoError(t, readAllEntries(valid))

	hugeName := binary.LittleEndian.AppendUint32(header(1), MaxEntryNameLen+1)
	hugeName = append(hugeName, strings.Repeat("a", MaxEntryNameLen+1)...)

	zeroName := binary.LittleEndian.AppendUint32(header(1), 0)

	badUTF8 := binary.LittleEndian.AppendUint32(header(1), 2)
	badUTF8 = append(badUTF8, 0xff, 0xfe)
	badUTF8 = binary.LittleEndian.AppendUint64(badUTF8, 0)

	hugeSize := binary.LittleEndian.AppendUint32(header(1), 1)
	hugeSize = append(hugeSize, 'x')
	hugeSize = binary.LittleEndian.AppendUint64(hugeSize, 1<<63)

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated data", valid[:len(valid)-3]},
		{"truncated size", valid[:8+4+len("photos/a.enc")+3]},
		{"truncated name", valid[:8+4+2]},
		{"partial name length", valid[:8+2]},
		{"name too long", hugeName},
		{"zero name length", zeroName},
		{"name not utf8", badUTF8},
		{"size overflow", hugeSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, readAllEntries(tt.data), ErrInvalidContainer)
		})
	}
}

func TestContainer_WriterValidates(t *testing.T) {
	cw, err := NewWriter(io.Discard)
	require.NoError(t, err)

	assert.Error(t, cw.WriteBytes("", []byte("x")))
	assert.Error(t, cw.WriteBytes(strings.Repeat("n", MaxEntryNameLen+1), nil))
	assert.Error(t, cw.WriteEntry("short", 10, bytes.NewReader([]byte("abc"))))
}
