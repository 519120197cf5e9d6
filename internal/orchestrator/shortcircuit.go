package orchestrator

import "strings"

// Identity and greeting short-circuits answer without touching the router or
// any backend. Keyword tables are configuration data.

var identityKeywords = []string{
	"qui es-tu", "qui êtes-vous", "quel est ton nom", "quel est votre nom",
	"comment tu t'appelles", "comment vous appelez-vous",
	"c'est quoi ton nom", "c'est quoi votre nom",
	"tu es qui", "vous êtes qui", "présente-toi", "présentez-vous",
	"qui es tu", "qui êtes vous", "ton nom", "votre nom",
	"t'appelles", "vous appelez", "identité",
	"qui est vybuddy", "c'est quoi vybuddy", "vybuddy", "vygeek",
}

const identityReply = "Bonjour ! 👋 Je suis **VyBuddy**, votre assistant support IT de **VyGeek**. Je suis là pour vous aider à résoudre vos problèmes techniques avec bienveillance et efficacité. Que ce soit pour des problèmes de connexion réseau, des soucis avec votre MacBook, des questions sur Google Workspace, ou toute autre demande de support, je suis à votre écoute ! Comment puis-je vous aider aujourd'hui ?"

var simpleGreetings = []string{
	"hello", "hi", "bonjour", "salut", "hey", "coucou", "bonsoir",
	"bonne journée", "bonjour !", "hello !", "hi !", "salut !",
}

const simpleGreetingReply = "Bonjour ! 👋 Je suis **VyBuddy**, votre assistant support IT de **VyGeek**. Je suis ravi de vous aider ! Comment puis-je vous assister aujourd'hui ?"

var greetingPrefixes = []string{
	"bonjour comment", "hello how", "hi how", "salut comment",
	"bonjour, comment", "hello, how", "hi, how",
}

const prefixGreetingReply = "Bonjour ! Je suis **VyBuddy**, votre agent de support IT de **VyGeek**. Comment puis-je vous aider aujourd'hui ?"

// checkIdentity answers questions about who the bot is.
func checkIdentity(message string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, kw := range identityKeywords {
		if strings.Contains(lower, kw) {
			return identityReply, true
		}
	}
	return "", false
}

// checkGreeting answers bare salutations: either an exact match or a
// greeting prefix with at most five words total.
func checkGreeting(message string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(message))

	for _, g := range simpleGreetings {
		if lower == g {
			return simpleGreetingReply, true
		}
	}
	for _, prefix := range greetingPrefixes {
		if strings.HasPrefix(lower, prefix) && len(strings.Fields(lower)) <= 5 {
			return prefixGreetingReply, true
		}
	}
	return "", false
}
