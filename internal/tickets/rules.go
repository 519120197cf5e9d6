package tickets

import (
	"strings"

	"github.com/vygeek/vybuddy/internal/history"
)

// Request archetypes and the information each one requires before a ticket
// may be opened. These tables are configuration data: tune them by editing
// entries, not by changing the matching code.

type archetype struct {
	label    string
	keywords []string
	required []string
}

var archetypes = []archetype{
	{
		label:    "installation_logiciel",
		keywords: []string{"installer", "installation", "logiciel", "software", "app", "application", "excel", "office"},
		required: []string{"numéro de série"},
	},
	{
		label:    "creation_email",
		keywords: []string{"créer", "création", "nouvelle adresse email", "nouveau email", "boucle email", "adresse email"},
		required: []string{"nom", "société"},
	},
	{
		label:    "acces_drive",
		keywords: []string{"accès", "dossier", "google drive", "drive", "partagé"},
		required: []string{"dossier", "raison"},
	},
	{
		label:    "licence",
		keywords: []string{"licence", "license", "office", "openai", "microsoft", "outil"},
		required: []string{"outil"},
	},
	{
		label:    "acces_salle",
		keywords: []string{"salle", "réunion", "meeting room", "accès salle"},
		required: []string{"salle", "personne"},
	},
	{
		label:    "acces_monday",
		keywords: []string{"monday", "board", "accès monday", "compte monday"},
		required: []string{"personne", "board"},
	},
	{
		label:    "probleme_macbook",
		keywords: []string{"macbook", "problème", "bug", "erreur", "ne fonctionne pas", "ne marche pas"},
		required: []string{"diagnostic", "détails"},
	},
	{
		label:    "probleme_wifi",
		keywords: []string{"wifi", "connexion", "réseau", "internet", "pas de connexion"},
		required: []string{"diagnostic", "étapes"},
	},
}

// fieldSynonyms maps a required field to the phrasings that count as having
// provided it somewhere in the conversational context.
var fieldSynonyms = map[string][]string{
	"numéro de série": {"numéro de série", "numéro série", "serial", "série", "n° de série", "n° série"},
	"nom":             {"nom", "prénom", "name", "personne", "utilisateur"},
	"personne":        {"nom", "prénom", "name", "personne", "utilisateur"},
	"société":         {"société", "company", "entreprise"},
	"dossier":         {"dossier", "folder", "document", "fichier"},
	"raison":          {"raison", "pourquoi", "pour", "cause", "motif", "besoin"},
	"salle":           {"salle", "room", "réunion", "meeting"},
	"outil":           {"outil", "tool", "office", "openai", "microsoft", "logiciel", "software"},
	"board":           {"board", "tableau", "monday"},
}

// diagnosticFields are satisfied once the exchange has gone past its first
// turn, on the assumption that the agent has been asking questions.
var diagnosticFields = map[string]bool{
	"diagnostic": true,
	"détails":    true,
	"étapes":     true,
}

// detectArchetype scores every archetype against the message plus the last
// three turns and returns the best match, or "" when nothing scores.
func detectArchetype(message string, turns []history.Turn) string {
	recent := turns
	if len(recent) > 3 {
		recent = recent[:3]
	}
	var b strings.Builder
	b.WriteString(strings.ToLower(message))
	for _, t := range recent {
		b.WriteString(" ")
		b.WriteString(strings.ToLower(t.User))
		b.WriteString(" ")
		b.WriteString(strings.ToLower(t.Bot))
	}
	context := b.String()

	best := ""
	bestScore := 0
	for _, a := range archetypes {
		score := 0
		for _, kw := range a.keywords {
			if strings.Contains(context, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = a.label, score
		}
	}
	return best
}

// missingFields returns the required fields of the detected archetype absent
// from the full conversational context. Empty means complete.
func missingFields(label, message, reply string, turns []history.Turn) []string {
	var arch *archetype
	for i := range archetypes {
		if archetypes[i].label == label {
			arch = &archetypes[i]
			break
		}
	}
	if arch == nil {
		return nil
	}

	recent := turns
	if len(recent) > 5 {
		recent = recent[:5]
	}
	var b strings.Builder
	b.WriteString(strings.ToLower(message))
	b.WriteString(" ")
	b.WriteString(strings.ToLower(reply))
	for _, t := range recent {
		b.WriteString(" ")
		b.WriteString(strings.ToLower(t.User))
		b.WriteString(" ")
		b.WriteString(strings.ToLower(t.Bot))
	}
	context := b.String()

	var missing []string
	for _, field := range arch.required {
		if fieldPresent(field, context, len(turns)) {
			continue
		}
		missing = append(missing, field)
	}
	return missing
}

func fieldPresent(field, context string, turnCount int) bool {
	if diagnosticFields[field] {
		return turnCount > 1 ||
			strings.Contains(context, "diagnostic") ||
			strings.Contains(context, "étape") ||
			strings.Contains(context, "solution")
	}
	synonyms, ok := fieldSynonyms[field]
	if !ok {
		return strings.Contains(context, strings.ToLower(field))
	}
	for _, s := range synonyms {
		if strings.Contains(context, s) {
			return true
		}
	}
	return false
}
