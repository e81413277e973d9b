// Package service 包含了应用的业务逻辑层。
package service

import "errors"

var (
	ErrArchiveNotFound    = errors.New("archive not found")
	ErrConnectionNotFound = errors.New("remote connection not found")
	ErrNoActiveConnection = errors.New("no active remote connection")
	ErrEmptyArchive       = errors.New("archive is empty")
	ErrAlreadyPlanned     = errors.New("archive already has parts")
	ErrNotFullyUploaded   = errors.New("archive is not fully uploaded")
	ErrConnectionInvalid  = errors.New("remote connection is not valid")
	ErrInvalidInput       = errors.New("invalid input")
)
