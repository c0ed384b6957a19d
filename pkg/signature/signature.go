// Package signature дайджест канонической строки, которым redirect шлюзы
// подписывают обратные вызовы и исходящие запросы на оплату
package signature

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"net/url"
	"sort"
	"strings"
)

// FieldName поле с подписью, в дайджест не входит
const FieldName = "signature"

const passphraseField = "passphrase"

// Algorithm поддерживаемый алгоритм дайджеста
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
)

var algorithms = map[Algorithm]func() hash.Hash{
	MD5:    md5.New,
	SHA1:   sha1.New,
	SHA256: sha256.New,
}

// Verifier подписывает и проверяет плоские строковые payload
// Состояния нет, безопасен для конкурентного использования
type Verifier struct {
	newHash func() hash.Hash
}

// New верификатор для алгоритма по имени; пустое имя - MD5, как в старом redirect протоколе
func New(alg Algorithm) (*Verifier, error) {
	if alg == "" {
		alg = MD5
	}
	newHash, ok := algorithms[Algorithm(strings.ToLower(string(alg)))]
	if !ok {
		return nil, fmt.Errorf("signature: unsupported algorithm %q", alg)
	}
	return &Verifier{newHash: newHash}, nil
}

// NewWithHash верификатор с произвольным конструктором дайджеста
func NewWithHash(newHash func() hash.Hash) *Verifier {
	return &Verifier{newHash: newHash}
}

// Canonical строка для дайджеста: ключи по возрастанию, key=urlencode(value) через '&'
// Поле подписи пропускается, passphrase (если задан) добавляется последним
func Canonical(payload map[string]string, secret string) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if k == FieldName {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(urlEncode(payload[k]))
	}

	if secret != "" {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(passphraseField)
		b.WriteByte('=')
		b.WriteString(urlEncode(secret))
	}

	return b.String()
}

// Sign hex дайджест канонической строки в нижнем регистре
func (v *Verifier) Sign(payload map[string]string, secret string) string {
	h := v.newHash()
	h.Write([]byte(Canonical(payload, secret)))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify сверяет подпись с дайджестом payload без учёта регистра за постоянное время
// Некорректный ввод дает false
func (v *Verifier) Verify(payload map[string]string, provided string, secret string) bool {
	if v == nil || v.newHash == nil || payload == nil {
		return false
	}

	provided = strings.ToLower(strings.TrimSpace(provided))
	if provided == "" {
		return false
	}
	if _, err := hex.DecodeString(provided); err != nil {
		return false
	}

	expected := v.Sign(payload, secret)
	if len(expected) != len(provided) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}

// urlEncode как PHP urlencode: пробел становится '+', '~' тоже экранируется
func urlEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "~", "%7E")
}
