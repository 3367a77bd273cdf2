package usecase

import (
	"browser-agent/internal/usecase/adapters"
)

type serviceFactory struct {
	deps Params
}

func newServiceFactory(deps Params) *serviceFactory {
	return &serviceFactory{
		deps: deps,
	}
}

func (f *serviceFactory) CreateSession() *Session {
	return NewSession(SessionParams{
		Config:      f.deps.Config,
		Logger:      f.deps.Logger,
		Browser:     f.deps.Browser,
		Highlighter: f.deps.Highlighter,
	})
}

func (f *serviceFactory) CreateAgentService(session *Session) adapters.AgentService {
	return NewAgentService(AgentServiceParams{
		Config:  f.deps.Config,
		Logger:  f.deps.Logger,
		Session: session,
		AI:      f.deps.AI,
		Input:   f.deps.Input,
	})
}

func (f *serviceFactory) CreateAIService() adapters.AIService {
	return f.deps.AI
}
