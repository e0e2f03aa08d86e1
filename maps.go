package main

// SpawnPoint is a map position a player may be placed at. Team is empty for
// points usable by anyone.
type SpawnPoint struct {
	Position Vec3    `json:"position"`
	Yaw      float64 `json:"rotation"`
	Team     Team    `json:"team,omitempty"`
}

// MapData is immutable for the life of the process.
type MapData struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	SpawnPoints []SpawnPoint `json:"spawnPoints"`
}

func sp(x, y, z, yaw float64) SpawnPoint {
	return SpawnPoint{Position: Vec3{X: x, Y: y, Z: z}, Yaw: yaw}
}

var mapList = []MapData{
	{
		ID:   "warehouse",
		Name: "Warehouse",
		SpawnPoints: []SpawnPoint{
			sp(-10, 1, -10, 0.785),
			sp(10, 1, -10, 2.356),
			sp(10, 1, 10, 3.927),
			sp(-10, 1, 10, 5.498),
			sp(0, 1, 0, 0),
			sp(0, 5, 0, 3.14),
		},
	},
	{
		ID:   "rooftops",
		Name: "Rooftops",
		SpawnPoints: []SpawnPoint{
			sp(-15, 10, -15, 0.785),
			sp(15, 10, -15, 2.356),
			sp(15, 15, 15, 3.927),
			sp(-15, 15, 15, 5.498),
			sp(0, 12, 0, 0),
			sp(5, 8, -5, 1.57),
		},
	},
	{
		ID:   "bunker",
		Name: "Bunker",
		SpawnPoints: []SpawnPoint{
			sp(-8, 1, -8, 0.785),
			sp(8, 1, -8, 2.356),
			sp(8, 1, 8, 3.927),
			sp(-8, 1, 8, 5.498),
			sp(0, -3, 0, 0),
			sp(0, 1, 0, 3.14),
		},
	},
	{
		ID:   "arena",
		Name: "Arena",
		SpawnPoints: []SpawnPoint{
			sp(-12, 1, 0, 0),
			sp(12, 1, 0, 3.14),
			sp(0, 1, -12, 1.57),
			sp(0, 1, 12, 4.71),
			sp(-8, 5, -8, 0.785),
			sp(8, 5, 8, 3.927),
		},
	},
	{
		ID:   "station",
		Name: "Station",
		SpawnPoints: []SpawnPoint{
			sp(-20, 1, 0, 0),
			sp(20, 1, 0, 3.14),
			sp(0, 1, -5, 1.57),
			sp(0, 1, 5, 4.71),
			sp(-10, 4, 3, 0),
			sp(10, 4, -3, 3.14),
		},
	},
	{
		ID:   "cargo",
		Name: "Cargo",
		SpawnPoints: []SpawnPoint{
			sp(-15, 1, -10, 0.5),
			sp(15, 1, -10, 2.6),
			sp(15, 1, 10, 3.6),
			sp(-15, 1, 10, 5.7),
			sp(0, 6, 0, 0),
			sp(-5, 3, 5, 1.57),
		},
	},
	{
		ID:   "office",
		Name: "Office",
		SpawnPoints: []SpawnPoint{
			sp(-10, 1, -10, 0.785),
			sp(10, 1, -10, 2.356),
			sp(10, 4, 10, 3.927),
			sp(-10, 4, 10, 5.498),
			sp(0, 1, 0, 0),
			sp(0, 4, 0, 3.14),
		},
	},
	{
		ID:   "temple",
		Name: "Temple",
		SpawnPoints: []SpawnPoint{
			sp(-12, 1, -12, 0.785),
			sp(12, 1, -12, 2.356),
			sp(12, 1, 12, 3.927),
			sp(-12, 1, 12, 5.498),
			sp(0, 8, 0, 0),
			sp(0, 1, 0, 3.14),
		},
	},
	{
		ID:   "factory",
		Name: "Factory",
		SpawnPoints: []SpawnPoint{
			sp(-18, 1, -8, 0),
			sp(18, 1, -8, 3.14),
			sp(18, 1, 8, 3.14),
			sp(-18, 1, 8, 0),
			sp(0, 6, 0, 1.57),
			sp(-8, 3, 0, 0),
		},
	},
	{
		ID:   "school",
		Name: "School",
		SpawnPoints: []SpawnPoint{
			sp(-12, 1, -12, 0.785),
			sp(12, 1, -12, 2.356),
			sp(12, 4, 12, 3.927),
			sp(-12, 4, 12, 5.498),
			sp(0, 1, 0, 0),
			sp(5, 4, -5, 2.356),
		},
	},
	{
		ID:   "hospital",
		Name: "Hospital",
		SpawnPoints: []SpawnPoint{
			sp(-10, 1, -10, 0.785),
			sp(10, 1, -10, 2.356),
			sp(10, 4, 10, 3.927),
			sp(-10, 4, 10, 5.498),
			sp(0, 7, 0, 0),
			sp(-5, 1, 5, 5.498),
		},
	},
	{
		ID:   "prison",
		Name: "Prison",
		SpawnPoints: []SpawnPoint{
			sp(-15, 1, -8, 0),
			sp(15, 1, -8, 3.14),
			sp(15, 4, 8, 3.14),
			sp(-15, 4, 8, 0),
			sp(0, 1, 0, 1.57),
			sp(0, 7, 0, 4.71),
		},
	},
	{
		ID:   "castle",
		Name: "Castle",
		SpawnPoints: []SpawnPoint{
			sp(-15, 1, -15, 0.785),
			sp(15, 1, -15, 2.356),
			sp(15, 8, 15, 3.927),
			sp(-15, 8, 15, 5.498),
			sp(0, 12, 0, 0),
			sp(0, 1, 0, 3.14),
		},
	},
	{
		ID:   "spaceship",
		Name: "Spaceship",
		SpawnPoints: []SpawnPoint{
			sp(-8, 1, -15, 1.57),
			sp(8, 1, -15, 1.57),
			sp(8, 1, 15, 4.71),
			sp(-8, 1, 15, 4.71),
			sp(0, 4, 0, 0),
			sp(0, 1, 0, 3.14),
		},
	},
	{
		ID:   "laboratory",
		Name: "Laboratory",
		SpawnPoints: []SpawnPoint{
			sp(-10, 1, -10, 0.785),
			sp(10, 1, -10, 2.356),
			sp(10, 1, 10, 3.927),
			sp(-10, 1, 10, 5.498),
			sp(0, -2, 0, 0),
			sp(5, 4, 5, 3.927),
		},
	},
}

var mapsByID = func() map[string]*MapData {
	m := make(map[string]*MapData, len(mapList))
	for i := range mapList {
		m[mapList[i].ID] = &mapList[i]
	}
	return m
}()

// GetMap looks up a map by id
func GetMap(id string) (*MapData, bool) {
	m, ok := mapsByID[id]
	return m, ok
}

// MapIDs returns every map id in catalogue order
func MapIDs() []string {
	ids := make([]string, len(mapList))
	for i, m := range mapList {
		ids[i] = m.ID
	}
	return ids
}

// SpawnPointsFor returns the points a player on team may use. Team mode
// allows points tagged for the team or untagged; otherwise all points.
func (m *MapData) SpawnPointsFor(team Team) []SpawnPoint {
	if team == TeamNone {
		return m.SpawnPoints
	}
	out := make([]SpawnPoint, 0, len(m.SpawnPoints))
	for _, p := range m.SpawnPoints {
		if p.Team == TeamNone || p.Team == team {
			out = append(out, p)
		}
	}
	return out
}
