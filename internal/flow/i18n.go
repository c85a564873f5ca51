package flow

import (
	"fmt"

	"github.com/jzfdigital/atendebot/internal/models"
)

// Supported language codes. DefaultLanguage renders a participant's very
// first message, before any language has been chosen.
const (
	LanguagePT      = "pt"
	LanguageEN      = "en"
	DefaultLanguage = LanguagePT
)

// Text keys for the per-language tables.
const (
	keyGreeting                  models.TextKey = "greeting"
	keyBackToStart               models.TextKey = "backToStart"
	keyOptionAIAssistant         models.TextKey = "optionAiAssistant"
	keyOptionScheduling          models.TextKey = "optionScheduling"
	keyOptionAttendant           models.TextKey = "optionAttendant"
	keyOptionChangeLanguage      models.TextKey = "optionChangeLanguage"
	keyAIDeptSelect              models.TextKey = "aiDeptSelect"
	keyAIDeptPrompt              models.TextKey = "aiDeptPrompt"
	keyDeptRH                    models.TextKey = "deptRH"
	keyDeptAccounting            models.TextKey = "deptAccounting"
	keyDeptTax                   models.TextKey = "deptTax"
	keyDeptCorporate             models.TextKey = "deptCorporate"
	keySchedulingService         models.TextKey = "schedulingService"
	keyServiceOpening            models.TextKey = "serviceOpening"
	keyServiceTaxReturn          models.TextKey = "serviceTaxReturn"
	keyServiceConsulting         models.TextKey = "serviceConsulting"
	keyServiceOther              models.TextKey = "serviceOther"
	keySchedulingClientType      models.TextKey = "schedulingClientType"
	keyClientTypeYes             models.TextKey = "clientTypeYes"
	keyClientTypeNo              models.TextKey = "clientTypeNo"
	keySchedulingMeetingType     models.TextKey = "schedulingMeetingType"
	keyMeetingTypeOnline         models.TextKey = "meetingTypeOnline"
	keyMeetingTypeOnSite         models.TextKey = "meetingTypeOnSite"
	keySchedulingResponsibleName models.TextKey = "schedulingResponsibleName"
	keySchedulingCompanyName     models.TextKey = "schedulingCompanyName"
	keySchedulingContactInfo     models.TextKey = "schedulingContactInfo"
	keySchedulingSummary         models.TextKey = "schedulingSummary"
	keyConfirmYes                models.TextKey = "confirmYes"
	keyConfirmNo                 models.TextKey = "confirmNo"
	keySchedulingConfirmed       models.TextKey = "schedulingConfirmed"
	keyAttendantSelect           models.TextKey = "attendantSelect"
	keyAttendantTransfer         models.TextKey = "attendantTransfer"
	keyError                     models.TextKey = "error"
	keyProcessing                models.TextKey = "processing"
	keyAnythingElse              models.TextKey = "anythingElse"
)

// textEntry is a tagged union: either a literal string or a function of the
// session context. Resolution is a pure function of (entry, context).
type textEntry struct {
	literal string
	compute func(ctx models.Context) string
}

func lit(s string) textEntry {
	return textEntry{literal: s}
}

func tmpl(f func(ctx models.Context) string) textEntry {
	return textEntry{compute: f}
}

type langTable map[models.TextKey]textEntry

var translations = map[string]langTable{
	LanguagePT: {
		keyGreeting:             lit("Olá! Bem-vindo(a) ao Atendimento Virtual JZF. Sou seu assistente virtual. Como posso te ajudar hoje?\n\nNosso horário de atendimento é de segunda a sexta, das 08h00min às 17h50min."),
		keyBackToStart:          lit("↩️ Voltar ao Início"),
		keyOptionAIAssistant:    lit("🧠 Tirar Dúvidas"),
		keyOptionScheduling:     lit("📅 Agendar Reunião"),
		keyOptionAttendant:      lit("💬 Falar com Atendente"),
		keyOptionChangeLanguage: lit("🌐 Mudar Idioma"),
		keyAIDeptSelect:         lit("Com certeza! Para que eu possa te ajudar melhor, sobre qual área você tem dúvidas?"),
		keyAIDeptPrompt: tmpl(func(ctx models.Context) string {
			return fmt.Sprintf("Pode perguntar. Estou à disposição para ajudar com suas dúvidas sobre %s.", ctx.Field(models.ContextKeyDepartment))
		}),
		keyDeptRH:                    lit("RH"),
		keyDeptAccounting:            lit("Contábil"),
		keyDeptTax:                   lit("Fiscal"),
		keyDeptCorporate:             lit("Societário"),
		keySchedulingService:         lit("Entendido. Para qual serviço você gostaria de solicitar um agendamento?"),
		keyServiceOpening:            lit("Abertura de Empresa"),
		keyServiceTaxReturn:          lit("Declaração de IR"),
		keyServiceConsulting:         lit("Consultoria"),
		keyServiceOther:              lit("Outros Assuntos"),
		keySchedulingClientType:      lit("Você já é nosso cliente?"),
		keyClientTypeYes:             lit("Sim, sou cliente"),
		keyClientTypeNo:              lit("Não, sou novo"),
		keySchedulingMeetingType:     lit("A reunião será online ou presencial?"),
		keyMeetingTypeOnline:         lit("Online"),
		keyMeetingTypeOnSite:         lit("Presencial"),
		keySchedulingResponsibleName: lit("Qual o nome completo do responsável pela reunião?"),
		keySchedulingCompanyName: tmpl(func(ctx models.Context) string {
			return fmt.Sprintf("Obrigado, %s. Agora, por favor, informe o nome da empresa.", ctx.LastInput)
		}),
		keySchedulingContactInfo: lit("Perfeito. E qual o melhor e-mail ou telefone para contato?"),
		keySchedulingSummary: tmpl(func(ctx models.Context) string {
			return fmt.Sprintf("Por favor, confirme as informações:\n\n- Serviço: *%s*\n- Cliente: *%s*\n- Modalidade: *%s*\n- Responsável: *%s*\n- Empresa: *%s*\n- Contato: *%s*\n\nAs informações estão corretas?",
				ctx.Field(models.ContextKeyService),
				ctx.Field(models.ContextKeyClientType),
				ctx.Field(models.ContextKeyMeetingType),
				ctx.History[models.StateSchedulingResponsibleName],
				ctx.History[models.StateSchedulingCompanyName],
				ctx.History[models.StateSchedulingContactInfo])
		}),
		keyConfirmYes: lit("Sim, confirmar"),
		keyConfirmNo:  lit("Não, recomeçar"),
		keySchedulingConfirmed: tmpl(func(ctx models.Context) string {
			return fmt.Sprintf("Obrigado! Sua solicitação de agendamento foi recebida. Nossa equipe entrará em contato através de *%s* para confirmar data e horário.\n\nSe precisar de mais alguma coisa, é só chamar!",
				ctx.History[models.StateSchedulingContactInfo])
		}),
		keyAttendantSelect: lit("Entendido. Para qual setor você gostaria de ser direcionado?"),
		keyAttendantTransfer: tmpl(func(ctx models.Context) string {
			return fmt.Sprintf("Ok. Estou direcionando sua conversa para o *Setor %s*. Por favor, aguarde e um de nossos especialistas irá responder em breve.\n\n_Horário de atendimento: Seg-Sex, 08h-17h50._",
				ctx.Field(models.ContextKeyDepartment))
		}),
		keyError:        lit("Desculpe, ocorreu um erro de comunicação com nosso assistente. Por favor, tente novamente."),
		keyProcessing:   lit("🧠 Processando, um momento..."),
		keyAnythingElse: lit("Posso ajudar com algo mais?"),
	},
	LanguageEN: {
		keyGreeting:             lit("Hello! Welcome to JZF Virtual Assistance. How can I help you today?\n\nOur business hours are Mon-Fri, 8:00 AM to 5:50 PM."),
		keyBackToStart:          lit("↩️ Back to Start"),
		keyOptionAIAssistant:    lit("🧠 Ask a Question"),
		keyOptionScheduling:     lit("📅 Schedule Meeting"),
		keyOptionAttendant:      lit("💬 Talk to an Agent"),
		keyOptionChangeLanguage: lit("🌐 Change Language"),
		keyAIDeptSelect:         lit("Certainly! Which area are your questions about?"),
		keyAIDeptPrompt: tmpl(func(ctx models.Context) string {
			return fmt.Sprintf("You can ask. I'm here to help with your questions about %s.", ctx.Field(models.ContextKeyDepartmentEn))
		}),
		keyDeptRH:                    lit("HR"),
		keyDeptAccounting:            lit("Accounting"),
		keyDeptTax:                   lit("Tax"),
		keyDeptCorporate:             lit("Corporate"),
		keySchedulingService:         lit("Understood. For which service would you like to request an appointment?"),
		keyServiceOpening:            lit("Company Formation"),
		keyServiceTaxReturn:          lit("Income Tax Return"),
		keyServiceConsulting:         lit("Consulting"),
		keyServiceOther:              lit("Other Matters"),
		keySchedulingClientType:      lit("Are you already our client?"),
		keyClientTypeYes:             lit("Yes, I am"),
		keyClientTypeNo:              lit("No, I'm new"),
		keySchedulingMeetingType:     lit("Will the meeting be online or in person?"),
		keyMeetingTypeOnline:         lit("Online"),
		keyMeetingTypeOnSite:         lit("In Person"),
		keySchedulingResponsibleName: lit("What is the full name of the person responsible for the meeting?"),
		keySchedulingCompanyName: tmpl(func(ctx models.Context) string {
			return fmt.Sprintf("Thank you, %s. Now, please provide the company name.", ctx.LastInput)
		}),
		keySchedulingContactInfo: lit("Perfect. And what is the best email or phone for contact?"),
		keySchedulingSummary: tmpl(func(ctx models.Context) string {
			meeting := ctx.Field(models.ContextKeyMeetingTypeEn)
			if meeting == "" {
				meeting = ctx.Field(models.ContextKeyMeetingType)
			}
			return fmt.Sprintf("Please confirm the information:\n\n- Service: *%s*\n- Client: *%s*\n- Modality: *%s*\n- Responsible: *%s*\n- Company: *%s*\n- Contact: *%s*\n\nIs the information correct?",
				ctx.Field(models.ContextKeyServiceEn),
				ctx.Field(models.ContextKeyClientTypeEn),
				meeting,
				ctx.History[models.StateSchedulingResponsibleName],
				ctx.History[models.StateSchedulingCompanyName],
				ctx.History[models.StateSchedulingContactInfo])
		}),
		keyConfirmYes: lit("Yes, confirm"),
		keyConfirmNo:  lit("No, restart"),
		keySchedulingConfirmed: tmpl(func(ctx models.Context) string {
			return fmt.Sprintf("Thank you! Your scheduling request has been received. Our team will contact you via *%s* to confirm the date and time.\n\nIf you need anything else, just ask!",
				ctx.History[models.StateSchedulingContactInfo])
		}),
		keyAttendantSelect: lit("Understood. To which department would you like to be directed?"),
		keyAttendantTransfer: tmpl(func(ctx models.Context) string {
			return fmt.Sprintf("Ok. I am directing your conversation to the *%s Department*. Please wait, and one of our specialists will respond shortly.\n\n_Support hours: Mon-Fri, 8 AM - 5:50 PM._",
				ctx.Field(models.ContextKeyDepartmentEn))
		}),
		keyError:        lit("Sorry, a communication error with our assistant occurred. Please try again."),
		keyProcessing:   lit("🧠 Processing, one moment..."),
		keyAnythingElse: lit("Can I help with anything else?"),
	},
}

// personaInstructions maps language and department (in that language's
// naming) to the system instruction for the AI sub-flow.
var personaInstructions = map[string]map[string]string{
	LanguagePT: {
		"RH":         "Você é um assistente de contabilidade especialista em Recursos Humanos e Departamento Pessoal no Brasil. Responda em Português do Brasil. Seja direto, amigável e use uma linguagem conversacional.",
		"Contábil":   "Você é um assistente de contabilidade especialista em normas contábeis brasileiras (CPCs). Responda em Português do Brasil. Seja direto, amigável e use uma linguagem conversacional.",
		"Fiscal":     "Você é um assistente de contabilidade especialista em legislação fiscal e tributária brasileira. Responda em Português do Brasil. Seja direto, amigável e use uma linguagem conversacional.",
		"Societário": "Você é um assistente de contabilidade especialista em direito societário e processos de empresas no Brasil. Responda em Português do Brasil. Seja direto, amigável e use uma linguagem conversacional.",
	},
	LanguageEN: {
		"HR":         "You are an accounting assistant specializing in Human Resources in Brazil. Respond in English. Be direct, friendly, and use a conversational tone.",
		"Accounting": "You are an accounting assistant specializing in Brazilian accounting standards (CPCs). Respond in English. Be direct, friendly, and use a conversational tone.",
		"Tax":        "You are an accounting assistant specializing in Brazilian tax legislation. Respond in English. Be direct, friendly, and use a conversational tone.",
		"Corporate":  "You are an accounting assistant specializing in corporate law and business processes in Brazil. Respond in English. Be direct, friendly, and use a conversational tone.",
	},
}

// PersonaInstruction selects the system instruction for the AI sub-flow from
// the session's language and chosen department. Falls back to the default
// language's tax persona when the department is unknown, so the sub-flow can
// always start.
func PersonaInstruction(lang string, ctx models.Context) string {
	table, ok := personaInstructions[lang]
	if !ok {
		table = personaInstructions[DefaultLanguage]
	}
	dept := ctx.Field(models.ContextKeyDepartment)
	if lang == LanguageEN {
		dept = ctx.Field(models.ContextKeyDepartmentEn)
	}
	if instruction, ok := table[dept]; ok {
		return instruction
	}
	if lang == LanguageEN {
		return personaInstructions[LanguageEN]["Tax"]
	}
	return personaInstructions[LanguagePT]["Fiscal"]
}

// FollowUpPrompt builds the fixed-shape prompt that asks the model for two
// short follow-up questions based on the last exchange.
func FollowUpPrompt(lang, userQuestion, botAnswer string) string {
	if lang == LanguageEN {
		return fmt.Sprintf("Based on this exchange, suggest exactly 2 short, relevant follow-up questions an accounting client might ask.\n\nUser: %q\nBot: %q\n\nReturn only a JSON array of strings, like: [\"First question?\", \"Second question?\"]", userQuestion, botAnswer)
	}
	return fmt.Sprintf("Baseado nesta troca de mensagens, sugira exatamente 2 perguntas de acompanhamento curtas e relevantes que um cliente de contabilidade faria.\n\nUsuário: %q\nBot: %q\n\nRetorne apenas um array JSON de strings, como: [\"Primeira pergunta?\", \"Segunda pergunta?\"]", userQuestion, botAnswer)
}
