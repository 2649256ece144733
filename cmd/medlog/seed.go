package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/medlog/medlog/internal/domain/logbook"
	"github.com/medlog/medlog/internal/domain/medcard"
	"github.com/medlog/medlog/internal/domain/profile"
)

// seedSampleData populates a fresh data directory with a handful of
// patients, medication cards, and partially filled logs for the current
// month. Existing records are left alone, so the command is safe to re-run.
func seedSampleData(a *app) error {
	patients := []profile.Fields{
		{
			ChildName:       "Emma Johnson",
			FosterHome:      "Sunrise Foster Home",
			Allergies:       "Penicillin, Peanuts",
			PrescriberName:  "Dr. Sarah Mitchell",
			PrescriberPhone: "(555) 123-4567",
			Pharmacy:        "MedCare Pharmacy",
			PharmacyPhone:   "(555) 234-5678",
		},
		{
			ChildName:       "Michael Chen",
			FosterHome:      "Hope House",
			Allergies:       "None known",
			PrescriberName:  "Dr. James Rodriguez",
			PrescriberPhone: "(555) 345-6789",
			Pharmacy:        "HealthPlus Pharmacy",
			PharmacyPhone:   "(555) 456-7890",
		},
		{
			ChildName:       "Sofia Martinez",
			FosterHome:      "Caring Hearts Foster Care",
			Allergies:       "Latex, Sulfa drugs",
			PrescriberName:  "Dr. Emily Thompson",
			PrescriberPhone: "(555) 567-8901",
			Pharmacy:        "Community Pharmacy",
			PharmacyPhone:   "(555) 678-9012",
		},
	}

	medications := map[string][]medcard.Fields{
		"emma_johnson": {
			{
				MedicineName:     "Methylphenidate",
				Strength:         "10mg",
				Dosage:           "1 tablet twice daily",
				ReasonPrescribed: "ADHD management",
			},
			{
				MedicineName:     "Melatonin",
				Strength:         "3mg",
				Dosage:           "1 tablet at bedtime",
				ReasonPrescribed: "Sleep support",
			},
		},
		"michael_chen": {
			{
				MedicineName:     "Fluoxetine",
				Strength:         "20mg",
				Dosage:           "1 capsule daily",
				ReasonPrescribed: "Anxiety and depression management",
			},
			{
				MedicineName: "Ibuprofen",
				Strength:     "200mg",
				Dosage:       "1-2 tablets as needed",
				ReasonPRN:    "Pain relief for headaches or minor injuries. Max 3 doses per day.",
			},
		},
		"sofia_martinez": {
			{
				MedicineName: "Albuterol Inhaler",
				Strength:     "90mcg",
				Dosage:       "2 puffs as needed",
				ReasonPRN:    "Asthma rescue inhaler",
			},
			{
				MedicineName:     "Montelukast",
				Strength:         "10mg",
				Dosage:           "1 tablet daily at bedtime",
				ReasonPrescribed: "Asthma prevention",
			},
		},
	}

	for _, fields := range patients {
		id, err := a.profiles.Create(fields)
		if errors.Is(err, profile.ErrDuplicateID) {
			fmt.Printf("Profile exists, skipping: %s\n", fields.ChildName)
			continue
		}
		if err != nil {
			return fmt.Errorf("creating profile %s: %w", fields.ChildName, err)
		}
		fmt.Printf("Profile created: %s\n", id)

		for _, med := range medications[id] {
			if _, err := a.cards.Create(id, med); err != nil {
				return fmt.Errorf("creating card %s for %s: %w", med.MedicineName, id, err)
			}
			fmt.Printf("  Medication card created: %s\n", med.MedicineName)
		}
	}

	now := time.Now()
	month := now.Format("January 2006")
	seedDays := now.Day()
	if seedDays > 15 {
		seedDays = 15
	}

	if err := seedLogEntries(a, "emma_johnson", month, logbook.MedicationInfo{
		MedicineName:     "Methylphenidate",
		Strength:         "10mg",
		Dosage:           "1 tablet twice daily",
		ReasonPrescribed: "ADHD management",
	}, seedDays, []string{"7:30 AM", "3:00 PM"}); err != nil {
		return err
	}

	if err := seedLogEntries(a, "emma_johnson", month, logbook.MedicationInfo{
		MedicineName:     "Melatonin",
		Strength:         "3mg",
		Dosage:           "1 tablet at bedtime",
		ReasonPrescribed: "Sleep support",
	}, seedDays, []string{"8:00 PM"}); err != nil {
		return err
	}

	if err := seedLogEntries(a, "michael_chen", month, logbook.MedicationInfo{
		MedicineName:     "Fluoxetine",
		Strength:         "20mg",
		Dosage:           "1 capsule daily",
		ReasonPrescribed: "Anxiety and depression management",
	}, seedDays, []string{"8:00 AM"}); err != nil {
		return err
	}

	fmt.Println("Sample data ready.")
	return nil
}

// seedLogEntries creates one month's log and records the given dose times
// for each of the first `days` days. An existing log is skipped untouched.
func seedLogEntries(a *app, profileID, month string, info logbook.MedicationInfo, days int, times []string) error {
	if _, err := a.logs.Create(profileID, month, info); err != nil {
		if errors.Is(err, logbook.ErrExists) {
			fmt.Printf("Log exists, skipping: %s / %s\n", profileID, info.MedicineName)
			return nil
		}
		return fmt.Errorf("creating log %s for %s: %w", info.MedicineName, profileID, err)
	}

	supply := 30 * len(times)
	for day := 1; day <= days; day++ {
		for _, at := range times {
			supply--
			entry := logbook.Entry{
				Day:             day,
				Time:            at,
				Initials:        "JD",
				AmountRemaining: fmt.Sprintf("%d tablets", supply),
			}
			if err := a.logs.AddEntry(profileID, info.MedicineName, month, entry); err != nil {
				return fmt.Errorf("adding entry for %s day %d: %w", info.MedicineName, day, err)
			}
		}
	}

	fmt.Printf("Log created: %s / %s (%s)\n", profileID, info.MedicineName, month)
	return nil
}
