package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TaskID identifies a task. The input may carry it as a JSON number or string; it is
// always keyed by its string form.
type TaskID string

// UnmarshalJSON accepts numeric and string IDs.
func (id *TaskID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TaskID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("task ID must be a number or string: %w", err)
	}
	*id = TaskID(n.String())
	return nil
}

func (id TaskID) String() string {
	return string(id)
}

// ImageSet is a named group of reference images.
type ImageSet struct {
	URLs    []string `json:"urls"`
	Content string   `json:"content,omitempty"`
}

// Task is one brief from the input file. Fields the pipeline does not use are kept
// untouched so the output record is the input object plus gpt_answer.
type Task struct {
	ID        TaskID
	UserQuery string
	Images    []ImageSet
	Answer    *ModelAnswer

	raw map[string]json.RawMessage
}

type taskFields struct {
	ID        *TaskID    `json:"ID"`
	UserQuery *string    `json:"user_query"`
	Images    []ImageSet `json:"images"`
}

// UnmarshalJSON decodes a task and keeps every original field.
func (t *Task) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var fields taskFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields.ID == nil {
		return fmt.Errorf("task is missing ID")
	}
	if fields.UserQuery == nil {
		return fmt.Errorf("task %s is missing user_query", *fields.ID)
	}
	if _, ok := raw["images"]; !ok {
		return fmt.Errorf("task %s is missing images", *fields.ID)
	}

	var answer *ModelAnswer
	if rawAnswer, ok := raw["gpt_answer"]; ok {
		if err := json.Unmarshal(rawAnswer, &answer); err != nil {
			return fmt.Errorf("task %s has an invalid gpt_answer: %w", *fields.ID, err)
		}
	}

	*t = Task{
		ID:        *fields.ID,
		UserQuery: *fields.UserQuery,
		Images:    fields.Images,
		Answer:    answer,
		raw:       raw,
	}
	return nil
}

// MarshalJSON writes the original object with gpt_answer set when an answer is attached.
func (t Task) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(t.raw)+1)
	for k, v := range t.raw {
		out[k] = v
	}

	if _, ok := out["ID"]; !ok {
		id, err := json.Marshal(string(t.ID))
		if err != nil {
			return nil, err
		}
		out["ID"] = id
	}
	if _, ok := out["user_query"]; !ok {
		q, err := json.Marshal(t.UserQuery)
		if err != nil {
			return nil, err
		}
		out["user_query"] = q
	}
	if _, ok := out["images"]; !ok {
		images := t.Images
		if images == nil {
			images = []ImageSet{}
		}
		im, err := json.Marshal(images)
		if err != nil {
			return nil, err
		}
		out["images"] = im
	}

	if t.Answer != nil {
		answer, err := json.Marshal(t.Answer)
		if err != nil {
			return nil, err
		}
		out["gpt_answer"] = answer
	}

	return json.Marshal(out)
}

// ImageRefs flattens the image sets into one ordered list of references.
func (t Task) ImageRefs() []string {
	var refs []string
	for _, set := range t.Images {
		refs = append(refs, set.URLs...)
	}
	return refs
}

// WithAnswer returns a copy of the task carrying the given answer.
func (t Task) WithAnswer(answer *ModelAnswer) Task {
	t.Answer = answer
	return t
}
