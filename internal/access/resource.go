package access

// Resource identifies one navigable section of the console. The set is closed.
type Resource string

const (
	ResourceDashboard         Resource = "dashboard"
	ResourceFiliais           Resource = "filiais"
	ResourceSetores           Resource = "setores"
	ResourceVendedores        Resource = "vendedores"
	ResourceGrupos            Resource = "grupos"
	ResourceUsuarios          Resource = "usuarios"
	ResourceDepartamentos     Resource = "departamentos"
	ResourceCargos            Resource = "cargos"
	ResourceFuncionarios      Resource = "funcionarios"
	ResourceMetas             Resource = "metas"
	ResourceComissoes         Resource = "comissoes"
	ResourceValeMercadoria    Resource = "vale-mercadoria"
	ResourceLancamentos       Resource = "lancamentos"
	ResourceAnaliseCurriculos Resource = "analise-curriculos"
	ResourceBancoTalentos     Resource = "banco-talentos"
	ResourceTarefas           Resource = "tarefas"
	ResourceEscala            Resource = "escala"
	ResourceCarregarVendas    Resource = "carregar-vendas"
	ResourceRelatorios        Resource = "relatorios"
	ResourceAssistenteIA      Resource = "assistente-ia"
)

// DefaultResource is shown when navigation targets an unknown key.
const DefaultResource = ResourceDashboard

var resources = []Resource{
	ResourceDashboard,
	ResourceFiliais,
	ResourceSetores,
	ResourceVendedores,
	ResourceGrupos,
	ResourceUsuarios,
	ResourceDepartamentos,
	ResourceCargos,
	ResourceFuncionarios,
	ResourceMetas,
	ResourceComissoes,
	ResourceValeMercadoria,
	ResourceLancamentos,
	ResourceAnaliseCurriculos,
	ResourceBancoTalentos,
	ResourceTarefas,
	ResourceEscala,
	ResourceCarregarVendas,
	ResourceRelatorios,
	ResourceAssistenteIA,
}

var resourceSet = func() map[Resource]struct{} {
	set := make(map[Resource]struct{}, len(resources))
	for _, r := range resources {
		set[r] = struct{}{}
	}
	return set
}()

// Resources lists every resource key in declaration order.
func Resources() []Resource {
	out := make([]Resource, len(resources))
	copy(out, resources)
	return out
}

// ParseResource reports whether key belongs to the closed enumeration.
func ParseResource(key string) (Resource, bool) {
	r := Resource(key)
	_, ok := resourceSet[r]
	return r, ok
}

// Valid reports whether r is a known resource.
func (r Resource) Valid() bool {
	_, ok := resourceSet[r]
	return ok
}

func (r Resource) String() string {
	return string(r)
}
