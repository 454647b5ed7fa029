package receipt

import "fmt"

// DecodeError means the uploaded bytes could not be rendered as an image.
// The pipeline stops for this image only; manual entry still works.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode image: %v", e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// RecognitionError covers any OCR engine failure: load failure, internal
// error, timeout. User-facing behavior is identical to DecodeError.
type RecognitionError struct {
	Err error
}

func (e *RecognitionError) Error() string { return fmt.Sprintf("recognize text: %v", e.Err) }

func (e *RecognitionError) Unwrap() error { return e.Err }
