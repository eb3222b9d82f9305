package history

import (
	"encoding/json"
	"fmt"

	"github.com/soundforge/studio/internal/model"
)

func encode(assets []model.MusicAsset) ([]byte, error) {
	if assets == nil {
		assets = []model.MusicAsset{}
	}
	data, err := json.Marshal(assets)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) ([]model.MusicAsset, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var assets []model.MusicAsset
	if err := json.Unmarshal(data, &assets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return assets, nil
}
