package usecase

import (
	"bufio"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"browser-agent/internal/config"
	"browser-agent/internal/ports"
	"browser-agent/internal/usecase/adapters"
)

type Service struct {
	Agent   adapters.AgentService
	Session adapters.SessionService
	AI      adapters.AIService
}

type Params struct {
	fx.In

	Logger      *zap.Logger
	Config      *config.Config
	Browser     ports.BrowserManager
	Highlighter ports.Highlighter
	AI          ports.AIClient
	Input       *bufio.Reader `optional:"true"`
}

func NewUsecase(params Params) *Service {
	factory := newServiceFactory(params)
	session := factory.CreateSession()

	return &Service{
		Agent:   factory.CreateAgentService(session),
		Session: session,
		AI:      factory.CreateAIService(),
	}
}
