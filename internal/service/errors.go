package service

import "errors"

// Kind 是业务错误的分类，HTTP 层据此统一映射状态码。
type Kind int

const (
	KindStorage Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindAuth
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	default:
		return "storage"
	}
}

// Error 携带分类与可展示给客户端的消息；Err 仅用于日志。
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf 返回 err 的分类，未分类的错误一律视为存储错误。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// Message 返回可以直接返回给客户端的错误描述。
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindStorage {
		return e.Msg
	}
	return "internal error"
}

func validation(msg string) error { return &Error{Kind: KindValidation, Msg: msg} }

func storage(op string, err error) error { return &Error{Kind: KindStorage, Msg: op, Err: err} }

var (
	ErrUsernameTaken    = &Error{Kind: KindConflict, Msg: "username taken"}
	ErrUserNotFound     = &Error{Kind: KindNotFound, Msg: "user not found"}
	ErrWrongPassword    = &Error{Kind: KindValidation, Msg: "wrong password"}
	ErrWrongOldPassword = &Error{Kind: KindValidation, Msg: "old password is incorrect"}
	ErrSameAsOld        = &Error{Kind: KindValidation, Msg: "new password must differ from the old one"}
	ErrPasswordChanged  = &Error{Kind: KindConflict, Msg: "password was changed concurrently"}

	ErrMalformedToken = &Error{Kind: KindAuth, Msg: "malformed token"}
	ErrUnauthorized   = &Error{Kind: KindAuth, Msg: "unauthorized"}
	ErrTokenNotFound  = &Error{Kind: KindNotFound, Msg: "token not found"}
	ErrTokenSpace     = &Error{Kind: KindStorage, Msg: "session token allocation exhausted retries"}

	ErrRoomNotFound  = &Error{Kind: KindNotFound, Msg: "room not found"}
	ErrNotRoomMember = &Error{Kind: KindAuth, Msg: "not a member of this room"}
	ErrNotMember     = &Error{Kind: KindNotFound, Msg: "user is not a member of this room"}

	ErrInvalidLimit    = &Error{Kind: KindValidation, Msg: "limit must be greater than zero"}
	ErrInvalidOffset   = &Error{Kind: KindValidation, Msg: "offset must not be negative"}
	ErrSelfAssociation = &Error{Kind: KindValidation, Msg: "cannot associate with yourself"}
	ErrInvalidKind     = &Error{Kind: KindValidation, Msg: "unknown association type"}
)
