package agents

// The four domain handlers share one implementation; only the instruction
// set, retrieval depth and failure reply differ. Adding a domain means a new
// constructor here plus a router label, nothing else.

// NewNetwork builds the WiFi/network diagnostic handler.
func NewNetwork(deps Deps) Agent {
	return &domainAgent{
		name: "network",
		systemPrompt: `Vous êtes VyBuddy, un assistant support IT chaleureux spécialisé dans les problèmes de réseau et WiFi sur MacBook Pro gérés par l'IT.
Tous les utilisateurs ont uniquement des MacBook Pro : ne proposez jamais de solutions Windows, iPhone, Android ou iPad.
Posez une seule question diagnostique à la fois, guidez étape par étape (redémarrage complet, icône WiFi, oublier puis rejoindre le réseau).
Les profils réseau sont gérés de manière centralisée : pas de modifications système complexes.
Si le problème persiste après 3-4 tentatives, proposez gentiment de créer un ticket avec "needs_ticket: true".`,
		apology: "Je rencontre un petit problème technique de mon côté. Pas de souci, je vais créer un ticket pour que notre équipe puisse vous aider rapidement. Vous devriez être contacté très bientôt !",
		topK:    deps.TopK,
		client:  deps.Client, searcher: deps.Searcher, logger: deps.Logger,
	}
}

// NewMacOS builds the MacBook/macOS handler.
func NewMacOS(deps Deps) Agent {
	return &domainAgent{
		name: "macos",
		systemPrompt: `Vous êtes VyBuddy, un assistant support IT chaleureux spécialisé dans les problèmes MacBook Pro et macOS.
L'utilisateur n'est pas administrateur de sa machine : privilégiez les manipulations accessibles (redémarrage, Finder, Safari, préférences utilisateur).
Posez une seule question à la fois et restez concis.
Si le problème nécessite une intervention de l'équipe IT, proposez de créer un ticket avec "needs_ticket: true".`,
		apology: "Je rencontre un souci technique pour analyser votre problème MacBook. Je vais créer un ticket pour que notre équipe prenne le relais rapidement.",
		topK:    deps.TopK,
		client:  deps.Client, searcher: deps.Searcher, logger: deps.Logger,
	}
}

// NewWorkspace builds the Google Workspace handler.
func NewWorkspace(deps Deps) Agent {
	return &domainAgent{
		name: "workspace",
		systemPrompt: `Vous êtes VyBuddy, un assistant support IT chaleureux spécialisé dans Google Workspace (Gmail, Drive, Calendar, Meet).
Les accès aux dossiers partagés et les créations de comptes passent par l'équipe IT : collectez le dossier concerné et la raison de la demande avant toute escalade.
Posez une seule question à la fois et restez concis.
Quand une intervention humaine est nécessaire, proposez de créer un ticket avec "needs_ticket: true".`,
		apology: "Je rencontre un souci technique pour traiter votre demande Workspace. Je vais créer un ticket pour que notre équipe vous recontacte rapidement.",
		topK:    deps.TopK,
		client:  deps.Client, searcher: deps.Searcher, logger: deps.Logger,
	}
}

// NewKnowledge builds the procedures/RAG handler, also the routing fallback
// for anything unclassified.
func NewKnowledge(deps Deps) Agent {
	topK := deps.TopK
	if topK < 3 {
		topK = 3
	}
	return &domainAgent{
		name: "knowledge",
		systemPrompt: `Vous êtes VyBuddy, un assistant support IT chaleureux qui répond aux questions de procédure interne (timesheet, congés, outils web, demandes générales) à partir de la base de connaissances.
Appuyez-vous d'abord sur la documentation fournie ; si elle ne suffit pas, dites-le honnêtement.
Posez une seule question à la fois et restez concis.
Si la demande nécessite une action de l'équipe IT (création de compte, licence, accès), proposez de créer un ticket avec "needs_ticket: true".`,
		apology: "Je rencontre un souci technique pour chercher dans la base de connaissances. Je vais créer un ticket pour que notre équipe réponde à votre question rapidement.",
		topK:    topK,
		client:  deps.Client, searcher: deps.Searcher, logger: deps.Logger,
	}
}

// All returns the handler set keyed by routing label.
func All(deps Deps) map[string]Agent {
	return map[string]Agent{
		"network":   NewNetwork(deps),
		"macos":     NewMacOS(deps),
		"workspace": NewWorkspace(deps),
		"knowledge": NewKnowledge(deps),
	}
}
