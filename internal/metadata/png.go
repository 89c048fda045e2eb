package metadata

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Chunks larger than this are skipped rather than buffered; text chunks are
// tiny compared to image data.
const maxTextChunk = 16 << 20

// TextChunks reads the keyword/text pairs embedded in a PNG stream (tEXt,
// zTXt and iTXt chunks). A stream that is not a PNG yields ErrNoMetadata.
// Corruption past the signature truncates the result instead of failing:
// whatever was readable is returned.
func TextChunks(r io.Reader) (map[string]string, error) {
	sig := make([]byte, len(pngSignature))
	if _, err := io.ReadFull(r, sig); err != nil || !bytes.Equal(sig, pngSignature) {
		return nil, ErrNoMetadata
	}

	chunks := make(map[string]string)
	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			return chunks, nil
		}
		length := binary.BigEndian.Uint32(header[:4])
		ctype := string(header[4:8])
		if ctype == "IEND" {
			return chunks, nil
		}
		if length > maxTextChunk || !isTextChunk(ctype) {
			// skip data + CRC
			if _, err := io.CopyN(io.Discard, r, int64(length)+4); err != nil {
				return chunks, nil
			}
			continue
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return chunks, nil
		}
		if _, err := io.CopyN(io.Discard, r, 4); err != nil { // CRC
			return chunks, nil
		}
		key, text, ok := decodeTextChunk(ctype, data)
		if ok {
			chunks[key] = text
		}
	}
}

func isTextChunk(ctype string) bool {
	return ctype == "tEXt" || ctype == "zTXt" || ctype == "iTXt"
}

func decodeTextChunk(ctype string, data []byte) (string, string, bool) {
	switch ctype {
	case "tEXt":
		key, rest, ok := bytes.Cut(data, []byte{0})
		if !ok {
			return "", "", false
		}
		return string(key), string(rest), true
	case "zTXt":
		key, rest, ok := bytes.Cut(data, []byte{0})
		if !ok || len(rest) < 1 || rest[0] != 0 {
			return "", "", false
		}
		text, err := inflate(rest[1:])
		if err != nil {
			return "", "", false
		}
		return string(key), text, true
	case "iTXt":
		key, rest, ok := bytes.Cut(data, []byte{0})
		if !ok || len(rest) < 2 {
			return "", "", false
		}
		compressed := rest[0] == 1
		rest = rest[2:] // compression flag + method
		// language tag and translated keyword, both null-terminated
		if _, rest, ok = bytes.Cut(rest, []byte{0}); !ok {
			return "", "", false
		}
		if _, rest, ok = bytes.Cut(rest, []byte{0}); !ok {
			return "", "", false
		}
		if compressed {
			text, err := inflate(rest)
			if err != nil {
				return "", "", false
			}
			return string(key), text, true
		}
		return string(key), string(rest), true
	}
	return "", "", false
}

func inflate(data []byte) (string, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, maxTextChunk))
	if err != nil {
		return "", err
	}
	return string(out), nil
}
