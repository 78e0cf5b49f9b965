package sigaa

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"enrollment_sync/internal/domain/enrollment"
)

// jsonText is a scalar the API sends as a string on some installations and
// as a number on others (tax ids lose their leading zeros that way). null
// and absent keys leave it invalid.
type jsonText struct {
	Value string
	Valid bool
}

func (t *jsonText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = jsonText{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = jsonText{Value: s, Valid: true}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*t = jsonText{Value: n.String(), Valid: true}
	return nil
}

func (t jsonText) ptr() *string {
	if !t.Valid {
		return nil
	}
	v := t.Value
	return &v
}

// enrollmentDTO is one entry of the enrollments endpoint. Disciplinas is kept
// raw so each offering decodes on its own.
type enrollmentDTO struct {
	Login       jsonText        `json:"login"`
	Matricula   jsonText        `json:"matricula"`
	Disciplinas json.RawMessage `json:"disciplinas"`
}

type disciplinaDTO struct {
	Periodo                  jsonText        `json:"periodo"`
	SemestreOfertaDisciplina jsonText        `json:"semestre_oferta_disciplina"`
	Turma                    jsonText        `json:"turma"`
	CodigoDisciplina         jsonText        `json:"codigo_disciplina"`
	Docentes                 json.RawMessage `json:"docentes"`
}

type docenteDTO struct {
	Docente    jsonText `json:"docente"`
	CPFDocente jsonText `json:"cpf_docente"`
}

// keyedEntry is one element of a JSON collection. Key is empty for arrays.
type keyedEntry struct {
	Key string
	Raw json.RawMessage
}

// splitCollection accepts the shapes the API uses for lists: an array, an
// object keyed by id (PHP associative arrays) or null. Object entries come
// back ordered by key.
func splitCollection(raw json.RawMessage) ([]keyedEntry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	switch trimmed[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		entries := make([]keyedEntry, 0, len(list))
		for _, r := range list {
			entries = append(entries, keyedEntry{Raw: r})
		}
		return entries, nil
	case '{':
		var byKey map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &byKey); err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(byKey))
		for k := range byKey {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]keyedEntry, 0, len(keys))
		for _, k := range keys {
			entries = append(entries, keyedEntry{Key: k, Raw: byKey[k]})
		}
		return entries, nil
	}
	return nil, fmt.Errorf("expected array or object, got %.20s", trimmed)
}

func (d enrollmentDTO) toRecord(key string) enrollment.Record {
	rec := enrollment.Record{
		Login:          d.Login.Value,
		RegistrationID: d.Matricula.Value,
	}
	if rec.RegistrationID == "" {
		rec.RegistrationID = key
	}

	entries, err := splitCollection(d.Disciplinas)
	if err != nil {
		rec.Offerings = []enrollment.RawOffering{malformedOffering(fmt.Errorf("disciplinas: %w", err))}
		return rec
	}
	rec.Offerings = make([]enrollment.RawOffering, 0, len(entries))
	for _, e := range entries {
		rec.Offerings = append(rec.Offerings, decodeOffering(e.Raw))
	}
	return rec
}

// decodeOffering never fails: an entry that cannot be decoded becomes an
// offering that does not validate.
func decodeOffering(raw json.RawMessage) enrollment.RawOffering {
	var disc disciplinaDTO
	if err := json.Unmarshal(raw, &disc); err != nil {
		return malformedOffering(err)
	}
	o := enrollment.RawOffering{
		Period:         disc.Periodo.ptr(),
		TermOfOffering: disc.SemestreOfertaDisciplina.ptr(),
		Section:        disc.Turma.ptr(),
		CourseCode:     disc.CodigoDisciplina.ptr(),
	}

	teachers, err := splitCollection(disc.Docentes)
	if err != nil {
		return malformedOffering(fmt.Errorf("docentes: %w", err))
	}
	for _, e := range teachers {
		var doc docenteDTO
		if err := json.Unmarshal(e.Raw, &doc); err != nil {
			// kept without a tax id so it is reported and skipped per teacher
			o.Teachers = append(o.Teachers, enrollment.TeacherRef{})
			continue
		}
		o.Teachers = append(o.Teachers, enrollment.TeacherRef{Name: doc.Docente.Value, TaxID: doc.CPFDocente.Value})
	}
	return o
}

func malformedOffering(err error) enrollment.RawOffering {
	return enrollment.RawOffering{DecodeErr: err}
}
