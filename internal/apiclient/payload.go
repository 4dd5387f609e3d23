package apiclient

import (
	"cattos-tracker/internal/history"
)

// slotNames maps slot names written by English and German clients to the
// English names the API expects.
var slotNames = map[string]string{
	"Head":     "Head",
	"Neck":     "Neck",
	"Shoulder": "Shoulder",
	"Chest":    "Chest",
	"Waist":    "Waist",
	"Legs":     "Legs",
	"Feet":     "Feet",
	"Wrist":    "Wrist",
	"Hands":    "Hands",
	"Finger1":  "Finger1",
	"Finger2":  "Finger2",
	"Trinket1": "Trinket1",
	"Trinket2": "Trinket2",
	"Back":     "Back",
	"MainHand": "MainHand",
	"OffHand":  "OffHand",
	"Ranged":   "Ranged",
	"Tabard":   "Tabard",
	"Shirt":    "Shirt",

	"Kopf":        "Head",
	"Hals":        "Neck",
	"Schulter":    "Shoulder",
	"Brust":       "Chest",
	"Taille":      "Waist",
	"Gürtel":      "Waist",
	"Beine":       "Legs",
	"Füße":        "Feet",
	"Handgelenke": "Wrist",
	"Hände":       "Hands",
	"Ring1":       "Finger1",
	"Ring2":       "Finger2",
	"Schmuck1":    "Trinket1",
	"Schmuck2":    "Trinket2",
	"Rücken":      "Back",
	"Haupthand":   "MainHand",
	"Nebenhand":   "OffHand",
	"Schildhand":  "OffHand",
	"Distanz":     "Ranged",
	"Wappenrock":  "Tabard",
	"Hemd":        "Shirt",
}

// classNames maps German class names to English. English names pass through.
var classNames = map[string]string{
	"Krieger":      "Warrior",
	"Paladin":      "Paladin",
	"Jäger":        "Hunter",
	"Schurke":      "Rogue",
	"Priester":     "Priest",
	"Schamane":     "Shaman",
	"Magier":       "Mage",
	"Hexenmeister": "Warlock",
	"Druide":       "Druid",
	"Todesritter":  "Death Knight",
}

// SlotName returns the API name of a client slot name. Unknown names pass through.
func SlotName(slot string) string {
	if name, ok := slotNames[slot]; ok {
		return name
	}
	return slot
}

// ClassName returns the English class name. Unknown names pass through.
func ClassName(class string) string {
	if name, ok := classNames[class]; ok {
		return name
	}
	return class
}

// CharacterPayload is one element of the JSON array posted to the API.
type CharacterPayload struct {
	Character     string            `json:"character"`
	CharacterName string            `json:"characterName"`
	Realm         string            `json:"realm"`
	ClassName     string            `json:"className"`
	Timestamp     string            `json:"timestamp"`
	ItemCount     int               `json:"itemCount"`
	Equipment     map[string]uint64 `json:"equipment"`
}

// Selection restricts which characters are sent.
type Selection struct {
	MainCharacter string
	OnlySendMain  bool
}

// BuildPayload shapes the latest snapshot of each selected character.
// Empty slots are dropped and characters left without items are skipped.
func BuildPayload(characters []history.Character, sel Selection) []CharacterPayload {
	payload := make([]CharacterPayload, 0, len(characters))

	for _, c := range characters {
		if sel.OnlySendMain && sel.MainCharacter != "" && c.Character != sel.MainCharacter {
			continue
		}

		snap := c.Latest()
		if snap == nil {
			continue
		}

		equipment := make(map[string]uint64)
		for slot, itemID := range snap.Equipment {
			if itemID == 0 {
				continue
			}
			equipment[SlotName(slot)] = itemID
		}
		if len(equipment) == 0 {
			continue
		}

		payload = append(payload, CharacterPayload{
			Character:     c.Character,
			CharacterName: c.Name(),
			Realm:         c.RealmName(),
			ClassName:     ClassName(c.Class),
			Timestamp:     snap.DateTime,
			ItemCount:     len(equipment),
			Equipment:     equipment,
		})
	}

	return payload
}
