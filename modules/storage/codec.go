package storage

import (
	"encoding/json"
	"fmt"
	"regexp"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
)

// document is the serialized form used by key-value backends.
type document struct {
	Version uint64       `json:"version"`
	Room    *domain.Room `json:"room"`
}

func encodeRoom(room *domain.Room) ([]byte, error) {
	data, err := json.Marshal(normalize(room.Clone()))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal room: %w", err)
	}
	return data, nil
}

func decodeRoom(data []byte) (*domain.Room, error) {
	var room domain.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}
	return normalize(&room), nil
}

func encodeDocument(version uint64, room *domain.Room) ([]byte, error) {
	data, err := json.Marshal(document{Version: version, Room: normalize(room.Clone())})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal room: %w", err)
	}
	return data, nil
}

func decodeDocument(data []byte) (*domain.Room, uint64, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal room: %w", err)
	}
	if doc.Room == nil {
		return nil, 0, fmt.Errorf("stored document has no room")
	}
	return normalize(doc.Room), doc.Version, nil
}

func encodeColumns(room *domain.Room) (elements, participants []byte, err error) {
	room = normalize(room.Clone())
	if elements, err = json.Marshal(room.Elements); err != nil {
		return nil, nil, fmt.Errorf("failed to marshal elements: %w", err)
	}
	if participants, err = json.Marshal(room.Participants); err != nil {
		return nil, nil, fmt.Errorf("failed to marshal participants: %w", err)
	}
	return elements, participants, nil
}

func decodeColumns(room *domain.Room, elements, participants []byte) error {
	if len(elements) > 0 {
		if err := json.Unmarshal(elements, &room.Elements); err != nil {
			return fmt.Errorf("failed to unmarshal elements: %w", err)
		}
	}
	if len(participants) > 0 {
		if err := json.Unmarshal(participants, &room.Participants); err != nil {
			return fmt.Errorf("failed to unmarshal participants: %w", err)
		}
	}
	normalize(room)
	return nil
}

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// validRoomID reports whether id can be used as a storage key.
func validRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}
