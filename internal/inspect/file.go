package inspect

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"

	_ "image/jpeg" // register decoder for dimension checks
	_ "image/png"  // register decoder for dimension checks
)

// FileArtifact is one uploaded attachment. It exists only for the duration
// of a single request; nothing is retained after the verdict.
type FileArtifact struct {
	Name        string
	Size        int64
	ContentType string
	Data        []byte
}

// maxFileSizes is the per-type size ceiling in bytes. Types absent from this
// table are not accepted at all.
var maxFileSizes = map[string]int64{
	"image/png":       10 << 20,
	"image/jpeg":      10 << 20,
	"application/pdf": 20 << 20,
	"text/plain":      5 << 20,
	"text/markdown":   5 << 20,
}

// extTypes maps allowed extensions to their implied content type, used when
// the uploader declares no content type.
var extTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".md":   "text/markdown",
}

// executableExts are rejected regardless of declared content type.
var executableExts = map[string]bool{
	".exe": true, ".dll": true, ".bat": true, ".cmd": true, ".sh": true,
	".ps1": true, ".scr": true, ".vbs": true, ".jar": true, ".app": true,
}

// executableSignatures are magic-byte prefixes of executable formats. A file
// carrying one of these is rejected no matter what it is named.
var executableSignatures = [][]byte{
	[]byte("MZ"),                     // PE
	{0x7f, 'E', 'L', 'F'},            // ELF
	[]byte("!<arch>"),                // Unix archive
	{0xca, 0xfe, 0xba, 0xbe},         // Mach-O fat binary
}

// pdfActiveMarkers indicate scripts or auto-actions embedded in a PDF.
var pdfActiveMarkers = []string{"/JavaScript", "/JS", "/AA", "/OpenAction", "/EmbeddedFile"}

// maxImagePixels caps decoded image area (matches PIL's default bomb limit).
const maxImagePixels = 178956970

// bombPixelsPerByte is the highest plausible decoded-pixels-to-compressed-
// bytes ratio; anything above it is treated as a decompression bomb.
const bombPixelsPerByte = 2000

const maxFilenameLen = 255

// InspectFile runs the four validation stages in order, short-circuiting on
// the first failure: filename safety, size bound, signature verification,
// type-specific deep checks. Later stages assume a well-formed file of the
// claimed type, which is why the order is fixed.
func InspectFile(f FileArtifact) Verdict {
	if v := checkFilename(f.Name); !v.OK {
		return v
	}

	declared, v := declaredType(f)
	if !v.OK {
		return v
	}
	if v := checkSize(f, declared); !v.OK {
		return v
	}

	sniffed, v := checkSignature(f.Data, declared)
	if !v.OK {
		return v
	}

	switch sniffed {
	case "application/pdf":
		return checkPDF(f.Data)
	case "image/png", "image/jpeg":
		return checkImage(f.Data)
	}
	return Accept()
}

// FileInfo describes an accepted file for audit logging.
type FileInfo struct {
	Name      string
	Size      int64
	MediaType string
	SHA256    string
}

// Describe returns audit metadata for f. The sniffed type is reported, not
// the declared one.
func Describe(f FileArtifact) FileInfo {
	sum := sha256.Sum256(f.Data)
	return FileInfo{
		Name:      f.Name,
		Size:      int64(len(f.Data)),
		MediaType: sniffType(f.Data),
		SHA256:    hex.EncodeToString(sum[:]),
	}
}

func checkFilename(name string) Verdict {
	if name == "" {
		return Reject("unsafe_filename", "empty filename")
	}
	if len(name) > maxFilenameLen {
		return Reject("unsafe_filename", fmt.Sprintf("filename too long (%d chars, max %d)", len(name), maxFilenameLen))
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return Reject("unsafe_filename", "filename contains path traversal sequence")
	}
	if strings.ContainsRune(name, 0) {
		return Reject("unsafe_filename", "filename contains null byte")
	}
	if strings.ContainsAny(name, `<>:"|?*`) {
		return Reject("unsafe_filename", "filename contains invalid characters")
	}
	for _, c := range []byte(name) {
		if c < 0x20 || c > 0x7e {
			return Reject("unsafe_filename", "filename contains non-printable or non-ASCII characters")
		}
	}
	if ext := strings.ToLower(filepath.Ext(name)); executableExts[ext] {
		return Reject("unsafe_filename", "executable file extension "+ext)
	}
	return Accept()
}

// declaredType resolves the content type the uploader claims, falling back
// to the filename extension, and enforces the allow-list.
func declaredType(f FileArtifact) (string, Verdict) {
	ct := f.ContentType
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(strings.ToLower(ct))

	if ct == "" || ct == "application/octet-stream" {
		ct = extTypes[strings.ToLower(filepath.Ext(f.Name))]
	}

	if _, ok := maxFileSizes[ct]; !ok {
		return "", Reject("type_not_allowed", "content type not allowed: "+orUnknown(ct))
	}
	return ct, Accept()
}

func checkSize(f FileArtifact, declared string) Verdict {
	size := int64(len(f.Data))
	if size == 0 {
		return Reject("size_bound", "empty file")
	}
	if max := maxFileSizes[declared]; size > max {
		return Reject("size_bound", fmt.Sprintf("file too large: %d bytes (max %d for %s)", size, max, declared))
	}
	return Accept()
}

// checkSignature verifies the leading bytes against the declared type. This
// defends against extension spoofing: a renamed executable fails here even
// when its name and size pass.
func checkSignature(data []byte, declared string) (string, Verdict) {
	header := data
	if len(header) > 8 {
		header = header[:8]
	}
	for _, sig := range executableSignatures {
		if bytes.HasPrefix(header, sig) {
			return "", Reject("executable_signature",
				fmt.Sprintf("executable file signature detected: %s", hex.EncodeToString(sig)))
		}
	}

	sniffed := sniffType(data)
	if !typesCompatible(declared, sniffed) {
		return "", Reject("signature_mismatch",
			fmt.Sprintf("file signature %s does not match declared type %s", orUnknown(sniffed), declared))
	}
	return sniffed, Accept()
}

func sniffType(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}):
		return "image/png"
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte("%PDF")):
		return "application/pdf"
	case isPrintableText(data):
		return "text/plain"
	default:
		return ""
	}
}

// typesCompatible reports whether the sniffed type can legitimately carry
// the declared one. Markdown sniffs as plain text.
func typesCompatible(declared, sniffed string) bool {
	if declared == sniffed {
		return true
	}
	return declared == "text/markdown" && sniffed == "text/plain"
}

// isPrintableText checks the first KB for anything outside printable ASCII
// plus tab/newline/carriage-return.
func isPrintableText(data []byte) bool {
	n := len(data)
	if n > 1024 {
		n = 1024
	}
	if n == 0 {
		return false
	}
	for _, b := range data[:n] {
		if b >= 0x20 && b < 0x7f {
			continue
		}
		if b == '\t' || b == '\n' || b == '\r' {
			continue
		}
		return false
	}
	return true
}

// checkPDF rejects PDFs carrying script or auto-action markers. The byte
// scan over the whole stream deliberately over-matches (e.g. /JSomething):
// false positives are acceptable, missed active content is not.
func checkPDF(data []byte) Verdict {
	for _, marker := range pdfActiveMarkers {
		if bytes.Contains(data, []byte(marker)) {
			return Reject("pdf_active_content", "pdf contains active content marker "+marker)
		}
	}
	if bytes.Contains(data, []byte("/AcroForm")) {
		slog.Warn("pdf contains form fields", "audit_class", "security")
	}
	return Accept()
}

// checkImage decodes only the header for dimensions and rejects implausible
// decoded sizes (decompression bombs).
func checkImage(data []byte) Verdict {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Reject("image_invalid", "invalid or corrupted image")
	}

	pixels := int64(cfg.Width) * int64(cfg.Height)
	if pixels <= 0 {
		return Reject("image_invalid", "invalid or corrupted image")
	}
	if pixels > maxImagePixels {
		return Reject("image_bomb", fmt.Sprintf("image too large: %dx%d pixels", cfg.Width, cfg.Height))
	}
	if pixels > int64(len(data))*bombPixelsPerByte {
		return Reject("image_bomb",
			fmt.Sprintf("implausible compression ratio: %dx%d pixels from %d bytes", cfg.Width, cfg.Height, len(data)))
	}
	return Accept()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
