// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import (
	"bytes"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"
)

const (
	// maxPrincipalBytes はプリンシパルの生バイト列の最大長。
	maxPrincipalBytes = 29
	checksumSize      = 4
	groupSize         = 5
)

var principalEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Principal はホストが認証済みとして渡す呼び出し元の識別子を表す。
// テキスト表現は CRC32 チェックサムと生バイト列を base32 化し、5文字ごとに "-" で区切ったもの。
type Principal struct {
	raw []byte
}

// AnonymousPrincipal は未認証の呼び出し元を表すプリンシパル（"2vxsx-fae"）。
var AnonymousPrincipal = Principal{raw: []byte{0x04}}

// PrincipalFromBytes は生バイト列からプリンシパルを生成する。
func PrincipalFromBytes(raw []byte) (Principal, error) {
	if len(raw) > maxPrincipalBytes {
		return Principal{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidPrincipal, len(raw), maxPrincipalBytes)
	}
	return Principal{raw: bytes.Clone(raw)}, nil
}

// ParsePrincipal はテキスト表現をプリンシパルに変換する。
// チェックサム不一致や非正規形の表現はエラーになる。
func ParsePrincipal(text string) (Principal, error) {
	compact := strings.ToUpper(strings.ReplaceAll(text, "-", ""))
	decoded, err := principalEncoding.DecodeString(compact)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %q: %v", ErrInvalidPrincipal, text, err)
	}
	if len(decoded) < checksumSize {
		return Principal{}, fmt.Errorf("%w: %q: too short", ErrInvalidPrincipal, text)
	}

	p, err := PrincipalFromBytes(decoded[checksumSize:])
	if err != nil {
		return Principal{}, err
	}
	if binary.BigEndian.Uint32(decoded[:checksumSize]) != crc32.ChecksumIEEE(p.raw) {
		return Principal{}, fmt.Errorf("%w: %q: checksum mismatch", ErrInvalidPrincipal, text)
	}
	// 大文字や区切り位置違いなど、正規形以外は受け付けない
	if p.String() != text {
		return Principal{}, fmt.Errorf("%w: %q: not in canonical form", ErrInvalidPrincipal, text)
	}
	return p, nil
}

// Bytes は生バイト列のコピーを返す。
func (p Principal) Bytes() []byte {
	return bytes.Clone(p.raw)
}

// IsAnonymous は匿名プリンシパルかどうかを返す。
func (p Principal) IsAnonymous() bool {
	return p.Equal(AnonymousPrincipal)
}

// Equal は同一のプリンシパルかどうかを返す。
func (p Principal) Equal(other Principal) bool {
	return bytes.Equal(p.raw, other.raw)
}

// String はテキスト表現を返す。
func (p Principal) String() string {
	buf := make([]byte, checksumSize+len(p.raw))
	binary.BigEndian.PutUint32(buf, crc32.ChecksumIEEE(p.raw))
	copy(buf[checksumSize:], p.raw)

	encoded := strings.ToLower(principalEncoding.EncodeToString(buf))
	var sb strings.Builder
	for i := 0; i < len(encoded); i += groupSize {
		if i > 0 {
			sb.WriteByte('-')
		}
		sb.WriteString(encoded[i:min(i+groupSize, len(encoded))])
	}
	return sb.String()
}

// MarshalText はテキスト表現を返す。
func (p Principal) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText はテキスト表現からプリンシパルを復元する。
func (p *Principal) UnmarshalText(text []byte) error {
	parsed, err := ParsePrincipal(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
