package transport

import (
	"io"

	"github.com/gobwas/ws"
)

// probe reads the header of the next frame and leaves its payload
// untouched in r.
func probe(r io.Reader) (ws.Header, error) {
	return ws.ReadHeader(r)
}

// readPayload reads exactly the payload announced by h and unmasks it.
func readPayload(r io.Reader, h ws.Header) ([]byte, error) {
	payload := make([]byte, h.Length)

	_, err := io.ReadFull(r, payload)
	if err != nil {
		return nil, err
	}

	if h.Masked {
		ws.Cipher(payload, h.Mask, 0)
	}

	return payload, nil
}

// skipPayload consumes the payload announced by h without keeping it.
func skipPayload(r io.Reader, h ws.Header) error {
	_, err := io.CopyN(io.Discard, r, h.Length)
	return err
}
