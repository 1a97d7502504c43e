package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io/fs"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"

	"github.com/joseph-ayodele/receipt-parser/constants"
)

func (e *Extractor) acquireImage(ctx context.Context, content []byte) (ExtractedText, error) {
	img, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return ExtractedText{}, acqErr(ReasonDecodeError, "image could not be decoded", err)
	}
	e.logger.Debug("decoded image", "format", format, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	txt, lang, err := e.ocrImage(ctx, img)
	if err != nil {
		return ExtractedText{}, err
	}
	return ExtractedText{
		Text:     txt,
		Source:   constants.SourceOCR,
		Language: lang,
		Pages:    1,
	}, nil
}

// ocrImage preprocesses one page, picks a language and recognizes it.
// OSD and recognition share one deadline.
func (e *Extractor) ocrImage(ctx context.Context, img image.Image) (string, string, error) {
	pp := preprocess(img, e.cfg.MinDeskewDim)
	if pp.skipCause != "" {
		e.logger.Debug("deskew skipped", "reason", pp.skipCause)
	} else if pp.deskewed {
		e.logger.Debug("deskewed image", "angle_deg", pp.skewDeg)
	}

	path, cleanup, err := writeTempPNG(pp.img)
	if err != nil {
		return "", "", acqErr(ReasonOcrError, "could not stage image for recognition", err)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	lang, err := e.detectLanguage(ctx, path)
	if err != nil {
		return "", "", err
	}

	txt, err := e.tesseractOCR(ctx, path, lang)
	if err != nil {
		return "", "", err
	}
	return Normalize(txt), lang, nil
}

func writeTempPNG(img image.Image) (string, func(), error) {
	f, err := os.CreateTemp("", "rp-ocr-*.png")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return f.Name(), cleanup, nil
}

func (e *Extractor) tesseractArgs(path string, extra ...string) []string {
	args := append([]string{path, "stdout"}, extra...)
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return args
}

// tesseract <file> stdout -l <lang> --psm <n>
func (e *Extractor) tesseractOCR(ctx context.Context, path, lang string) (string, error) {
	args := e.tesseractArgs(path, "-l", lang, "--psm", strconv.Itoa(e.cfg.PSM))
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", e.classifyRunErr(ctx, err, errb)
	}
	return string(out), nil
}

var (
	reOSDLanguage = regexp.MustCompile(`(?m)^Language:\s*(\w+)`)
	reOSDScript   = regexp.MustCompile(`(?m)^Script:\s*(\w+)`)
)

// scriptLangs maps OSD script names to a tesseract language pack. Latin is
// absent on purpose: it says nothing about the language.
var scriptLangs = map[string]string{
	"arabic":     "ara",
	"bengali":    "ben",
	"cyrillic":   "rus",
	"devanagari": "hin",
	"greek":      "ell",
	"han":        "chi_sim",
	"hangul":     "kor",
	"hebrew":     "heb",
	"japanese":   "jpn",
	"tamil":      "tam",
	"thai":       "tha",
}

// detectLanguage runs tesseract's orientation and script pass. Any failure
// other than a missing engine falls back to the default language.
func (e *Extractor) detectLanguage(ctx context.Context, path string) (string, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.tesseractArgs(path, "--psm", "0")...)
	if err != nil {
		if engineMissing(err) {
			return "", e.classifyRunErr(ctx, err, errb)
		}
		e.logger.Debug("language detection failed, using default", "default_lang", e.cfg.DefaultLang, "error", err)
		return e.cfg.DefaultLang, nil
	}
	if lang, ok := parseOSD(string(out)); ok {
		return lang, nil
	}
	return e.cfg.DefaultLang, nil
}

func parseOSD(out string) (string, bool) {
	if m := reOSDLanguage.FindStringSubmatch(out); m != nil {
		return strings.ToLower(m[1]), true
	}
	if m := reOSDScript.FindStringSubmatch(out); m != nil {
		lang, ok := scriptLangs[strings.ToLower(m[1])]
		return lang, ok
	}
	return "", false
}

func (e *Extractor) classifyRunErr(ctx context.Context, err error, stderr []byte) error {
	switch {
	case engineMissing(err):
		return acqErr(ReasonEngineUnavailable, msgEngineMissing, err)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return acqErr(ReasonOcrError, "recognition deadline exceeded", ctx.Err())
	default:
		msg := msgRecognitionFail
		if s := strings.TrimSpace(string(stderr)); s != "" {
			msg += ": " + truncate(s, 200)
		}
		return acqErr(ReasonOcrError, msg, err)
	}
}

// engineMissing reports whether the engine binary could not be started at all.
func engineMissing(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)
}
