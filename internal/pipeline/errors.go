package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/ocr"
)

// Kind is the failure family of a pipeline run.
type Kind string

const (
	KindUnsupportedFileType Kind = "UnsupportedFileType"
	KindAcquisition         Kind = "AcquisitionFailure"
	KindValidation          Kind = "ValidationFailure"
)

// Stage names the step that failed.
type Stage string

const (
	StageClassify Stage = "classify"
	StageAcquire  Stage = "acquire"
	StageValidate Stage = "validate"
)

// Error is the terminal failure of one document. Cause keeps the stage's
// own typed error for errors.Is/As.
type Error struct {
	Kind     Kind
	Stage    Stage
	Filename string
	Reason   ocr.Reason // set for KindAcquisition
	Cause    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse %q: %s at %s: %v", e.Filename, e.Kind, e.Stage, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// UserMessage is a short, actionable description suitable for showing to the uploader.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindUnsupportedFileType:
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(e.Filename)), ".")
		if ext == "" {
			return "file has no extension; upload a JPG, PNG, GIF, BMP, PDF or TXT file"
		}
		return fmt.Sprintf("unsupported file type %q; upload a JPG, PNG, GIF, BMP, PDF or TXT file", ext)

	case KindAcquisition:
		switch e.Reason {
		case ocr.ReasonEngineUnavailable:
			return "install the OCR engine (tesseract) and make sure it is on PATH"
		case ocr.ReasonOcrError:
			return "recognition failed on this image; try a sharper scan"
		case ocr.ReasonNoSelectableText:
			return "no selectable text in PDF - rescan as image"
		case ocr.ReasonDecodeError:
			return "the file could not be read; it may be corrupt or mislabelled"
		case ocr.ReasonEmptyText:
			var ae *ocr.AcquisitionError
			if errors.As(e.Cause, &ae) && ae.Message != "" {
				return ae.Message
			}
			return "document contains no readable text"
		}
		return "text could not be read from the document"

	case KindValidation:
		var ve common.ValidationErrors
		if errors.As(e.Cause, &ve) && len(ve) > 0 {
			return "could not determine " + strings.Join(ve.Fields(), ", ") + "; enter the receipt manually"
		}
		return "the receipt is missing required fields; enter it manually"
	}
	return "the document could not be parsed"
}

// GRPCStatus maps the failure onto a status so transports can return it as-is.
func (e *Error) GRPCStatus() *status.Status {
	code := codes.Internal
	switch e.Kind {
	case KindUnsupportedFileType, KindValidation:
		code = codes.InvalidArgument
	case KindAcquisition:
		switch e.Reason {
		case ocr.ReasonEngineUnavailable:
			code = codes.Unavailable
		case ocr.ReasonDecodeError, ocr.ReasonEmptyText:
			code = codes.InvalidArgument
		case ocr.ReasonNoSelectableText:
			code = codes.FailedPrecondition
		}
	}
	return status.New(code, e.UserMessage())
}
