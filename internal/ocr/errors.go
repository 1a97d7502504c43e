package ocr

import (
	"errors"
	"fmt"
)

// Reason says why text could not be acquired from a document.
type Reason string

const (
	ReasonDecodeError       Reason = "DecodeError"
	ReasonNoSelectableText  Reason = "NoSelectableText"
	ReasonEngineUnavailable Reason = "EngineUnavailable"
	ReasonOcrError          Reason = "OcrError"
	ReasonEmptyText         Reason = "EmptyText"
)

// ErrAcquisition matches every *AcquisitionError with errors.Is.
var ErrAcquisition = errors.New("text acquisition failed")

// AcquisitionError is the typed failure of text acquisition.
type AcquisitionError struct {
	Reason  Reason
	Message string
	Cause   error
}

func (e *AcquisitionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *AcquisitionError) Unwrap() error { return e.Cause }

func (e *AcquisitionError) Is(target error) bool { return target == ErrAcquisition }

func acqErr(reason Reason, msg string, cause error) *AcquisitionError {
	return &AcquisitionError{Reason: reason, Message: msg, Cause: cause}
}

// ReasonOf returns the acquisition reason carried by err, if any.
func ReasonOf(err error) (Reason, bool) {
	var ae *AcquisitionError
	if errors.As(err, &ae) {
		return ae.Reason, true
	}
	return "", false
}

const (
	msgEmptyText       = "document contains no readable text"
	msgPDFNoText       = "no selectable text in PDF - rescan as image"
	msgEngineMissing   = "OCR engine is not installed or not on PATH"
	msgRecognitionFail = "recognition failed on this image"
)
