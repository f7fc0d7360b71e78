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

package sgx

import (
	"encoding/binary"
	"errors"
)

// Offsets in the fixed part of an SGX DCAP quote.
const (
	offsetMREnclave  = 112
	offsetMRSigner   = 176
	offsetISVProdID  = 304
	offsetISVSVN     = 306
	offsetReportData = 368
	quoteHeaderSize  = 432
)

var ErrQuoteTooShort = errors.New("quote too short: minimum 432 bytes required")

// SGXQuote holds the fields of a quote the relay looks at. The signature is
// not verified here.
type SGXQuote struct {
	Version            uint16
	AttestationKeyType uint16
	MRENCLAVE          [32]byte
	MRSIGNER           [32]byte
	ISVProdID          uint16
	ISVSVN             uint16
	ReportData         [64]byte
	Signature          []byte
}

// ParseQuote parses the fixed fields of an SGX quote.
func ParseQuote(quote []byte) (*SGXQuote, error) {
	if len(quote) < quoteHeaderSize {
		return nil, ErrQuoteTooShort
	}
	q := &SGXQuote{
		Version:            binary.LittleEndian.Uint16(quote[0:2]),
		AttestationKeyType: binary.LittleEndian.Uint16(quote[2:4]),
		ISVProdID:          binary.LittleEndian.Uint16(quote[offsetISVProdID:]),
		ISVSVN:             binary.LittleEndian.Uint16(quote[offsetISVSVN:]),
	}
	copy(q.MRENCLAVE[:], quote[offsetMREnclave:])
	copy(q.MRSIGNER[:], quote[offsetMRSigner:])
	copy(q.ReportData[:], quote[offsetReportData:])
	if len(quote) > quoteHeaderSize {
		q.Signature = append([]byte(nil), quote[quoteHeaderSize:]...)
	}
	return q, nil
}
