// Пакет model — доменные модели OAI-PMH провайдера.
// Record, Set и RecordsList — нейтральное представление данных бэкенда,
// которое адаптеры строят из своих ответов, а протокольный движок рендерит в XML.
package model

import "time"

// Record — одна запись репозитория в нейтральной модели.
// Создаётся адаптером и после создания не изменяется.
type Record struct {
	// Identifier — внешний идентификатор (уже с OAI-префиксом)
	Identifier string
	// Metadata — готовое XML-содержимое для запрошенного формата (без обёртки формата)
	Metadata string
	// Deleted — запись удалена в бэкенде
	Deleted bool
	// Datestamp — время последнего изменения
	Datestamp time.Time
	// Sets — setSpec всех наборов, в которые входит запись
	Sets []string
}

// RecordsList — одна страница записей и общее количество совпадений.
// NumFound >= len(Records).
type RecordsList struct {
	Records  []*Record
	NumFound int
}

// Set — набор записей (setSpec, setName).
type Set struct {
	Spec string
	Name string
}

// ListQuery — параметры выборки страницы записей у адаптера.
type ListQuery struct {
	// From — нижняя граница datestamp (нулевое значение — без ограничения)
	From time.Time
	// Until — верхняя граница datestamp включительно (нулевое значение — без ограничения)
	Until time.Time
	// Set — setSpec; пустая строка — все наборы
	Set string
	// Format — формат метаданных для рендеринга содержимого
	Format MetadataFormat
	// Start — смещение первой записи страницы
	Start int
	// Rows — максимальное количество записей на странице
	Rows int
}
