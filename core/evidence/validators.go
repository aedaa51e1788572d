package evidence

import (
	"fmt"
	"math/rand"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/rumboapp/rumbo/core"
)

var (
	errFileTooLarge = errors.New("el archivo supera el tamaño máximo permitido")
	errFileType     = errors.New("tipo de archivo no permitido")
)

// allowedContentTypes are the formats evidence files may use. Office formats
// sniff as zip or ole so the extension is checked for those.
var allowedContentTypes = map[string]struct{}{
	"application/pdf": {},
	"image/png":       {},
	"image/jpeg":      {},
}

var allowedOfficeExts = map[string]struct{}{
	".doc":  {},
	".docx": {},
	".xls":  {},
	".xlsx": {},
}

// CheckFile validates the file's size and sniffed content type against the
// configured limits. head must hold the first bytes of the file (512 is
// enough for http.DetectContentType).
func CheckFile(filename string, size int64, head []byte, conf *core.Config) (string, error) {
	if size > conf.Storage.MaxUploadSize {
		limitMB := conf.Storage.MaxUploadSize / (1 << 20)
		return "", core.NewValidationError(errFileTooLarge,
			core.FieldError{Field: "archivo", Error: fmt.Sprintf("el archivo supera el tamaño máximo de %dMB", limitMB)})
	}

	ctype := http.DetectContentType(head)
	ctype = strings.TrimSpace(strings.SplitN(ctype, ";", 2)[0])
	if _, ok := allowedContentTypes[ctype]; ok {
		return ctype, nil
	}
	if _, ok := allowedOfficeExts[strings.ToLower(filepath.Ext(filename))]; ok {
		return ctype, nil
	}
	return "", core.NewValidationError(errFileType,
		core.FieldError{Field: "archivo", Error: "tipo de archivo no permitido (PDF, Word, Excel o imagen)"})
}

// ObjectKey builds a collision-resistant storage key for an evidence file.
func ObjectKey(usuarioID string, trimestre int, filename string) string {
	return fmt.Sprintf("evidencias/%s/trimestre-%d/%d_%06d_%s",
		usuarioID, trimestre, time.Now().UTC().Unix(), rand.Intn(1000000), sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
