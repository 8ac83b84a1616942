package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const msgNotImage = "Must be an image"

// uploadError is a rejected upload with the status to answer with
type uploadError struct {
	status int
	msg    string
}

func (e *uploadError) Error() string { return e.msg }

// readImage reads the multipart "file" field, limited to maxBytes, and
// checks that it is an image. The declared type wins over sniffing.
func readImage(c *gin.Context, maxBytes int64) ([]byte, string, error) {
	if maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+1<<20) // Room for the multipart envelope
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, "", &uploadError{http.StatusRequestEntityTooLarge, "Image too large"}
		}
		return nil, "", &uploadError{http.StatusBadRequest, msgNotImage}
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, "", &uploadError{http.StatusRequestEntityTooLarge, "Image too large"}
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", &uploadError{http.StatusBadRequest, msgNotImage}
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil || len(data) == 0 {
		return nil, "", &uploadError{http.StatusBadRequest, msgNotImage}
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", &uploadError{http.StatusBadRequest, msgNotImage}
	}
	return data, contentType, nil
}

// abortUpload answers with the upload error's status
func abortUpload(c *gin.Context, err error) {
	var ue *uploadError
	if errors.As(err, &ue) {
		c.JSON(ue.status, gin.H{"error": ue.msg})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": msgNotImage})
}
