// Copyright 2024 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package storage

import "errors"

var (
	ErrInvalidConfig    = errors.New("invalid storage configuration")
	ErrMarkerExists     = errors.New("processed marker already recorded")
	ErrMarkerNotFound   = errors.New("processed marker not found")
	ErrCorruptMarker    = errors.New("corrupt processed marker")
	ErrSecretNotFound   = errors.New("secret not found")
	ErrInvalidSecretID  = errors.New("invalid secret id")
	ErrPathNotEncrypted = errors.New("path is not on an encrypted filesystem")
)
