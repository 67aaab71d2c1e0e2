package oaipmh

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// tokenDelimiter разделяет поля resumption token.
const tokenDelimiter = "|"

// tokenFields — шесть информационных полей и время выдачи.
const tokenFields = 7

// tokenEscaper экранирует '%' и разделитель внутри значений полей.
var tokenEscaper = strings.NewReplacer("%", "%25", tokenDelimiter, "%7C")

// ResumptionToken — курсор постраничной выдачи, который клиент возвращает без изменений.
// Формат: command|set|from|until|metadataPrefix|startPosition|issued,
// где issued — unix-время выдачи в секундах.
type ResumptionToken struct {
	Command        string
	Set            string
	From           string
	Until          string
	MetadataPrefix string
	StartPosition  string
	Issued         time.Time
}

// defaultToken — результат декодирования некорректной строки.
func defaultToken() ResumptionToken {
	return ResumptionToken{StartPosition: "0"}
}

// Encode сериализует токен в строку.
func (t ResumptionToken) Encode() string {
	fields := []string{t.Command, t.Set, t.From, t.Until, t.MetadataPrefix, t.StartPosition}
	if !t.Issued.IsZero() {
		fields = append(fields, strconv.FormatInt(t.Issued.Unix(), 10))
	}
	for i, f := range fields {
		fields[i] = tokenEscaper.Replace(f)
	}
	return strings.Join(fields, tokenDelimiter)
}

// DecodeResumptionToken разбирает строку токена. Никогда не возвращает ошибку:
// некорректная строка даёт токен по умолчанию, недостающие хвостовые поля —
// пустые строки ("0" для startPosition).
func DecodeResumptionToken(s string) ResumptionToken {
	parts := strings.Split(s, tokenDelimiter)
	if len(parts) > tokenFields {
		return defaultToken()
	}

	fields := make([]string, tokenFields)
	for i, p := range parts {
		v, err := url.PathUnescape(p)
		if err != nil {
			return defaultToken()
		}
		fields[i] = v
	}

	t := ResumptionToken{
		Command:        fields[0],
		Set:            fields[1],
		From:           fields[2],
		Until:          fields[3],
		MetadataPrefix: fields[4],
		StartPosition:  fields[5],
	}
	if t.StartPosition == "" {
		t.StartPosition = "0"
	}
	if fields[6] != "" {
		sec, err := strconv.ParseInt(fields[6], 10, 64)
		if err != nil {
			return defaultToken()
		}
		t.Issued = time.Unix(sec, 0).UTC()
	}
	return t
}

// Start возвращает startPosition как неотрицательное число.
func (t ResumptionToken) Start() (int, bool) {
	n, err := strconv.Atoi(t.StartPosition)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Expired — истёк ли токен при заданном TTL (ttl <= 0 — бессрочный).
func (t ResumptionToken) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 || t.Issued.IsZero() {
		return false
	}
	return now.After(t.Issued.Add(ttl))
}
