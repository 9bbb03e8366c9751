// PowerSNMPv3 - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package ber

import (
	"errors"
	"fmt"
)

// ErrFraming is matched by every FramingError through errors.Is.
var ErrFraming = errors.New("ber: framing error")

// ErrInvalidOID is returned by the strict OID encoder.
var ErrInvalidOID = errors.New("ber: invalid object identifier")

// FramingError reports malformed BER input: truncated or over-long lengths,
// indefinite lengths, unexpected tags or content that does not fit its type.
type FramingError struct {
	Offset int
	Msg    string
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("ber: %s at offset %d", e.Msg, e.Offset)
}

func (e *FramingError) Is(target error) bool { return target == ErrFraming }

func framingError(offset int, format string, args ...any) *FramingError {
	return &FramingError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}
