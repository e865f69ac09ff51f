package clients

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
)

// formPart is one field of a multipart body. A part with a path is sent as a
// file read from disk; otherwise value is sent as a plain field.
type formPart struct {
	name     string
	value    string
	path     string
	fileName string
}

// multipartBody streams parts as a multipart/form-data body without
// buffering files in memory. The returned reader must be consumed or closed.
func multipartBody(parts []formPart) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeParts(mw, parts))
	}()

	return pr, mw.FormDataContentType()
}

func writeParts(mw *multipart.Writer, parts []formPart) error {
	for _, p := range parts {
		if p.path == "" {
			if err := mw.WriteField(p.name, p.value); err != nil {
				return fmt.Errorf("failed to write field %s: %w", p.name, err)
			}
			continue
		}
		if err := writeFilePart(mw, p); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writeFilePart(mw *multipart.Writer, p formPart) error {
	f, err := os.Open(p.path)
	if err != nil {
		return fmt.Errorf("failed to open %s part: %w", p.name, err)
	}
	defer f.Close()

	w, err := mw.CreateFormFile(p.name, p.fileName)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", p.name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to write %s part: %w", p.name, err)
	}
	return nil
}
