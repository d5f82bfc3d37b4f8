package patients

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var idNamespace = uuid.MustParse("6f1c1b9e-3d4a-4b8e-9a55-2f8c0d7e4a10")

// stableID derives an id from a seed string so records lacking one get the
// same id on every load.
func stableID(parts ...string) string {
	return uuid.NewSHA1(idNamespace, []byte(strings.Join(parts, "\x00"))).String()
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SeedPatients is the built-in demo set merged into every load.
func SeedPatients() []Patient {
	mk := func(name string, age int, blood, allergy, phone, address, lastVisit string, treatments ...Treatment) Patient {
		id := stableID("seed", nameKey(name))
		for i := range treatments {
			treatments[i].ID = stableID("seed-treatment", id, treatments[i].Description)
		}
		return Patient{
			ID:         id,
			Name:       name,
			Age:        age,
			BloodType:  blood,
			Allergy:    allergy,
			Address:    address,
			Phone:      phone,
			LastVisit:  lastVisit,
			Treatments: treatments,
			Findings:   map[int][]Finding{},
		}
	}

	return []Patient{
		mk("María García", 34, "O+", "Penicilina", "+34 600 111 222", "Calle Mayor 12, Madrid", "2026-01-15",
			Treatment{Date: "2026-01-15", Description: "Limpieza Dental", Cost: decimal.NewFromInt(60), Status: TreatmentCompleted},
		),
		mk("Carlos López", 52, "A-", "Ninguna", "+34 600 333 444", "Av. de la Paz 4, Valencia", "2025-12-02",
			Treatment{Date: "2025-11-20", Description: "Endodoncia", Tooth: 36, Cost: decimal.NewFromInt(320), Status: TreatmentCompleted},
			Treatment{Date: "2025-12-02", Description: "Corona", Tooth: 36, Cost: decimal.NewFromInt(450), Status: TreatmentCompleted},
		),
		mk("Lucía Fernández", 27, "B+", "Látex", "+34 600 555 666", "Plaza Nueva 8, Sevilla", "Sin visitas"),
	}
}
