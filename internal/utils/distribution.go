package utils

// ChooseUpstreams возвращает порядок опроса вышестоящих узлов для цикла синхронизации.
// cycle - номер цикла синхронизации
// pool - список настроенных вышестоящих узлов
// Первым идет узел, соответствующий номеру цикла, остальные следуют по кругу
// как запасные.
func ChooseUpstreams(cycle uint64, pool []string) []string {
	if len(pool) == 0 {
		return nil
	}

	poolSize := uint64(len(pool))
	result := make([]string, 0, len(pool))

	// Начинаем с узла, соответствующего номеру цикла
	primary := cycle % poolSize
	for i := uint64(0); i < poolSize; i++ {
		result = append(result, pool[(primary+i)%poolSize])
	}

	return result
}
