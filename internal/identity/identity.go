// Package identity выдает стабильный псевдо-идентификатор пользователя
// вместо авторизации: создается один раз и хранится на стороне клиента.
package identity

import (
	"encoding/binary"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// StorageKey - ключ в долговременном хранилище клиента
	StorageKey = "chat_user_id"
	// Anonymous возвращается, когда хранилища нет
	Anonymous = "anonymous"

	randomSuffixLen = 9
)

var userIDPattern = regexp.MustCompile(`^user_[0-9]{1,16}_[a-z0-9]{9}$`)

// Storage - долговременное key/value хранилище клиента
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

type Resolver struct {
	storage Storage
	now     func() time.Time
}

// NewResolver принимает nil, если хранилища нет (не браузерный контекст)
func NewResolver(storage Storage) *Resolver {
	return &Resolver{storage: storage, now: time.Now}
}

// GetOrCreateUserID возвращает сохраненный идентификатор или создает и сохраняет новый
func (r *Resolver) GetOrCreateUserID() string {
	if r == nil || r.storage == nil {
		return Anonymous
	}

	if id, ok := r.storage.Get(StorageKey); ok && IsValidUserID(id) {
		return id
	}

	id := NewUserID(r.now())
	r.storage.Set(StorageKey, id)
	return id
}

// NewUserID собирает идентификатор из времени и случайных бит: user_<ms>_<9 символов base36>
func NewUserID(now time.Time) string {
	return "user_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + randomSuffix()
}

func randomSuffix() string {
	b := uuid.New()
	suffix := strconv.FormatUint(binary.BigEndian.Uint64(b[8:]), 36)
	if len(suffix) < randomSuffixLen {
		suffix = strings.Repeat("0", randomSuffixLen-len(suffix)) + suffix
	}
	return suffix[:randomSuffixLen]
}

// IsValidUserID проверяет формат идентификатора, anonymous тоже допустим
func IsValidUserID(id string) bool {
	return id == Anonymous || userIDPattern.MatchString(id)
}

// MapStorage - хранилище в памяти
type MapStorage map[string]string

func (m MapStorage) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapStorage) Set(key, value string) {
	m[key] = value
}
